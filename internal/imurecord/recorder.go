// Package imurecord captures IMU samples from a live session for a fixed
// duration and exports them as CSV or into the recordings database.
package imurecord

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/depth.camera/internal/camera"
	"github.com/banshee-data/depth.camera/internal/db"
	"github.com/banshee-data/depth.camera/internal/fsutil"
	"github.com/banshee-data/depth.camera/internal/monitoring"
	"github.com/banshee-data/depth.camera/internal/security"
	"github.com/banshee-data/depth.camera/internal/timeutil"
)

// DefaultInterval is the pause between IMU polls.
const DefaultInterval = 50 * time.Millisecond

// Header is the first CSV row.
var Header = []string{"timestamp", "accel_x", "accel_y", "accel_z", "gyro_x", "gyro_y", "gyro_z"}

// Source is the part of a session the recorder polls.
type Source interface {
	IMU(maxSamples int) (camera.Frame[float64], bool)
}

// Store persists a finished recording.
type Store interface {
	InsertIMUSamples(rec db.Recording, samples []camera.IMUSample) error
}

// Recorder accumulates IMU samples. It is not safe for concurrent use.
type Recorder struct {
	src        Source
	clock      timeutil.Clock
	interval   time.Duration
	maxSamples int

	store  Store
	origin string

	// OnProgress, if set, is called after every poll that returned samples.
	OnProgress func(elapsed time.Duration, total int)

	samples []camera.IMUSample
}

// NewRecorder polls src every interval for up to maxSamples samples per
// poll. Zero values select DefaultInterval and camera.DefaultIMUSamples.
func NewRecorder(src Source, clock timeutil.Clock, interval time.Duration, maxSamples int) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxSamples <= 0 {
		maxSamples = camera.DefaultIMUSamples
	}
	return &Recorder{src: src, clock: clock, interval: interval, maxSamples: maxSamples}
}

// WithStore saves every finished run to store, labelled with origin (for
// example the camera module id).
func (r *Recorder) WithStore(store Store, origin string) *Recorder {
	r.store = store
	r.origin = origin
	return r
}

// Summary describes one Run.
type Summary struct {
	RecordingID string
	StartedAt   time.Time
	Elapsed     time.Duration
	Samples     int
	Interrupted bool
}

// Run polls until duration has elapsed or ctx is cancelled. Cancellation
// ends the run early without error; the samples gathered so far are kept
// and stored.
func (r *Recorder) Run(ctx context.Context, duration time.Duration) (Summary, error) {
	sum := Summary{RecordingID: uuid.NewString(), StartedAt: r.clock.Now()}
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

loop:
	for r.clock.Since(sum.StartedAt) < duration {
		select {
		case <-ctx.Done():
			sum.Interrupted = true
			break loop
		case <-ticker.C():
			r.poll(sum.StartedAt)
		}
	}
	sum.Elapsed = r.clock.Since(sum.StartedAt)
	sum.Samples = len(r.samples)

	if r.store != nil {
		rec := db.Recording{
			ID:        sum.RecordingID,
			StartedAt: sum.StartedAt,
			Duration:  sum.Elapsed.Seconds(),
			Source:    r.origin,
		}
		if err := r.store.InsertIMUSamples(rec, r.samples); err != nil {
			return sum, fmt.Errorf("store recording %s: %w", sum.RecordingID, err)
		}
	}
	monitoring.Logf("imu: recorded %d samples in %.1fs", sum.Samples, sum.Elapsed.Seconds())
	return sum, nil
}

func (r *Recorder) poll(started time.Time) {
	f, ok := r.src.IMU(r.maxSamples)
	if !ok {
		return
	}
	r.samples = append(r.samples, camera.IMUSamples(f)...)
	if r.OnProgress != nil {
		r.OnProgress(r.clock.Since(started), len(r.samples))
	}
}

// Samples returns everything recorded so far.
func (r *Recorder) Samples() []camera.IMUSample {
	return r.samples
}

// WriteCSV writes the header and one row per sample with six decimals.
func WriteCSV(w io.Writer, samples []camera.IMUSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	row := make([]string, len(Header))
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, s := range samples {
		row[0] = format(s.Timestamp)
		for i := 0; i < 3; i++ {
			row[1+i] = format(s.Accel[i])
			row[4+i] = format(s.Gyro[i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes samples as CSV to name inside exportDir on fsys and returns
// the resolved path. Missing parent directories are created.
func Export(fsys fsutil.FileSystem, name, exportDir string, samples []camera.IMUSample) (string, error) {
	path, err := security.ResolveExportPath(name, exportDir)
	if err != nil {
		return "", err
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(f, samples); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

package imurecord

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depth.camera/internal/camera"
	"github.com/banshee-data/depth.camera/internal/db"
	"github.com/banshee-data/depth.camera/internal/fsutil"
	"github.com/banshee-data/depth.camera/internal/native"
	"github.com/banshee-data/depth.camera/internal/security"
	"github.com/banshee-data/depth.camera/internal/testutil"
	"github.com/banshee-data/depth.camera/internal/timeutil"
)

// countingSource returns one sample per poll, timestamped with the poll
// number, and nothing on every third poll.
type countingSource struct {
	calls atomic.Int32
}

func (s *countingSource) IMU(maxSamples int) (camera.Frame[float64], bool) {
	n := s.calls.Add(1)
	if n%3 == 0 {
		return camera.Frame[float64]{}, false
	}
	return camera.Frame[float64]{
		Shape: []int{1, native.IMUFields},
		Data:  []float64{float64(n), 0.1, 0.2, 9.8, 0.01, 0.02, 0.03},
	}, true
}

type memStore struct {
	rec     db.Recording
	samples []camera.IMUSample
	err     error
}

func (m *memStore) InsertIMUSamples(rec db.Recording, samples []camera.IMUSample) error {
	m.rec, m.samples = rec, samples
	return m.err
}

func startRun(t *testing.T, ctx context.Context, r *Recorder, clock *timeutil.MockClock, d time.Duration) <-chan Summary {
	t.Helper()
	done := make(chan Summary, 1)
	go func() {
		sum, err := r.Run(ctx, d)
		assert.NoError(t, err)
		done <- sum
	}()
	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)
	return done
}

func TestRecorder_RunForDuration(t *testing.T) {
	testutil.MuteLogs(t)
	clock := timeutil.NewMockClock(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	src := &countingSource{}
	store := &memStore{}
	var progress []int
	r := NewRecorder(src, clock, 50*time.Millisecond, 0).WithStore(store, "SYNTHETIC-0001")
	r.OnProgress = func(_ time.Duration, total int) { progress = append(progress, total) }

	done := startRun(t, context.Background(), r, clock, 200*time.Millisecond)
	for i := int32(1); i <= 4; i++ {
		clock.Advance(50 * time.Millisecond)
		require.Eventually(t, func() bool { return src.calls.Load() == i }, time.Second, time.Millisecond)
	}

	var sum Summary
	select {
	case sum = <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not finish")
	}
	assert.False(t, sum.Interrupted)
	assert.Equal(t, 200*time.Millisecond, sum.Elapsed)
	assert.Equal(t, 3, sum.Samples, "the third poll was empty")
	assert.Equal(t, []int{1, 2, 3}, progress)

	assert.Equal(t, sum.RecordingID, store.rec.ID)
	assert.Equal(t, "SYNTHETIC-0001", store.rec.Source)
	assert.InDelta(t, 0.2, store.rec.Duration, 1e-9)
	require.Len(t, store.samples, 3)
	assert.Equal(t, []float64{1, 2, 4}, []float64{store.samples[0].Timestamp, store.samples[1].Timestamp, store.samples[2].Timestamp})
}

func TestRecorder_CancelKeepsSamples(t *testing.T) {
	testutil.MuteLogs(t)
	clock := timeutil.NewMockClock(time.Now())
	src := &countingSource{}
	store := &memStore{}
	r := NewRecorder(src, clock, 0, 10).WithStore(store, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(t, ctx, r, clock, time.Hour)
	clock.Advance(DefaultInterval)
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	sum := <-done
	assert.True(t, sum.Interrupted)
	assert.Equal(t, 1, sum.Samples)
	assert.Len(t, store.samples, 1)
	assert.Len(t, r.Samples(), 1)
}

func TestRecorder_StoreError(t *testing.T) {
	testutil.MuteLogs(t)
	clock := timeutil.NewMockClock(time.Now())
	store := &memStore{err: errors.New("disk full")}
	r := NewRecorder(&countingSource{}, clock, 0, 0).WithStore(store, "")
	_, err := r.Run(context.Background(), 0)
	assert.ErrorContains(t, err, "disk full")
}

func TestRecorder_AgainstSession(t *testing.T) {
	testutil.MuteLogs(t)
	lib := native.NewMockLibrary()
	s := camera.NewSession(lib)
	require.NoError(t, s.Init(native.Resolution640x400, 25))
	t.Cleanup(s.Release)
	require.NoError(t, s.EnableIMU())
	lib.PublishIMU(
		[native.IMUFields]float64{0.5, 0, 0, 9.8, 0, 0, 0},
		[native.IMUFields]float64{0.6, 0, 0, 9.8, 0, 0, 0},
	)

	clock := timeutil.NewMockClock(time.Now())
	r := NewRecorder(s, clock, 10*time.Millisecond, 0)
	done := startRun(t, context.Background(), r, clock, 10*time.Millisecond)
	clock.Advance(10 * time.Millisecond)
	sum := <-done
	assert.Equal(t, 2, sum.Samples)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []camera.IMUSample{
		{Timestamp: 12.5, Accel: [3]float64{0.1, -0.2, 9.80665}, Gyro: [3]float64{0, 0.001, -1}},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,accel_x,accel_y,accel_z,gyro_x,gyro_y,gyro_z", lines[0])
	assert.Equal(t, "12.500000,0.100000,-0.200000,9.806650,0.000000,0.001000,-1.000000", lines[1])
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	path, err := Export(fsutil.OSFileSystem{}, "runs/imu.csv", dir, []camera.IMUSample{{Timestamp: 1}})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "timestamp,"))
	assert.Equal(t, "imu.csv", filepath.Base(path))

	_, err = Export(fsutil.OSFileSystem{}, "../escape.csv", dir, nil)
	assert.ErrorIs(t, err, security.ErrOutsideExportDir)
}

func TestExport_MemoryFileSystem(t *testing.T) {
	dir := t.TempDir()
	mem := fsutil.NewMemoryFileSystem()
	path, err := Export(mem, "a/b/imu.csv", dir, []camera.IMUSample{{Timestamp: 2}, {Timestamp: 3}})
	require.NoError(t, err)

	assert.Equal(t, []string{path}, mem.Files())
	data, err := mem.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
	assert.NoFileExists(t, path, "nothing reaches the host filesystem")
}

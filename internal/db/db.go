// Package db stores IMU recordings and the detection log in SQLite.
package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/depth.camera/internal/camera"
)

type DB struct {
	*sql.DB
	path string
}

// pragmas are applied to every pooled connection.
const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)&_pragma=foreign_keys(1)"

// OpenDB opens the database without touching the schema.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?"+pragmas)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{DB: db, path: path}, nil
}

// NewDB opens the database and applies any pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Recording is one IMU capture run.
type Recording struct {
	ID          string    `json:"recording_id"`
	StartedAt   time.Time `json:"started_at"`
	Duration    float64   `json:"duration_s"`
	SampleCount int       `json:"sample_count"`
	Source      string    `json:"source"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}

// InsertIMUSamples stores a recording and its samples in one transaction.
// The recording's SampleCount is taken from len(samples).
func (db *DB) InsertIMUSamples(rec Recording, samples []camera.IMUSample) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(
		`INSERT INTO recordings (recording_id, started_at, duration_s, sample_count, source)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, unixSeconds(rec.StartedAt), rec.Duration, len(samples), rec.Source,
	); err != nil {
		return fmt.Errorf("insert recording %s: %w", rec.ID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO imu_samples (recording_id, timestamp, ax, ay, az, gx, gy, gz)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err = stmt.Exec(rec.ID, s.Timestamp,
			s.Accel[0], s.Accel[1], s.Accel[2],
			s.Gyro[0], s.Gyro[1], s.Gyro[2]); err != nil {
			return fmt.Errorf("insert imu sample: %w", err)
		}
	}
	return tx.Commit()
}

// Recordings lists recordings, newest first.
func (db *DB) Recordings(limit int) ([]Recording, error) {
	rows, err := db.Query(
		`SELECT recording_id, started_at, duration_s, sample_count, source
		 FROM recordings ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var r Recording
		var started float64
		if err := rows.Scan(&r.ID, &started, &r.Duration, &r.SampleCount, &r.Source); err != nil {
			return nil, err
		}
		r.StartedAt = fromUnixSeconds(started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// IMUSamples returns the samples of one recording in timestamp order.
func (db *DB) IMUSamples(recordingID string) ([]camera.IMUSample, error) {
	rows, err := db.Query(
		`SELECT timestamp, ax, ay, az, gx, gy, gz FROM imu_samples
		 WHERE recording_id = ? ORDER BY timestamp`, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []camera.IMUSample
	for rows.Next() {
		var s camera.IMUSample
		if err := rows.Scan(&s.Timestamp,
			&s.Accel[0], &s.Accel[1], &s.Accel[2],
			&s.Gyro[0], &s.Gyro[1], &s.Gyro[2]); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DetectionRecord is a logged detection.
type DetectionRecord struct {
	camera.Detection
	SessionID  string    `json:"session_id"`
	ObservedAt time.Time `json:"observed_at"`
}

// RecordDetections logs one poll's detections.
func (db *DB) RecordDetections(sessionID string, observedAt time.Time, dets []camera.Detection) error {
	if len(dets) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, d := range dets {
		if _, err := tx.Exec(
			`INSERT INTO detections (session_id, observed_at, x, y, w, h, class_id, class_name, score)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, unixSeconds(observedAt), d.X, d.Y, d.W, d.H, d.ClassID, d.ClassName, d.Score,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert detection: %w", err)
		}
	}
	return tx.Commit()
}

// RecentDetections returns the latest logged detections, newest first.
func (db *DB) RecentDetections(limit int) ([]DetectionRecord, error) {
	rows, err := db.Query(
		`SELECT session_id, observed_at, x, y, w, h, class_id, class_name, score
		 FROM detections ORDER BY observed_at DESC, detection_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DetectionRecord
	for rows.Next() {
		var r DetectionRecord
		var observed float64
		if err := rows.Scan(&r.SessionID, &observed, &r.X, &r.Y, &r.W, &r.H,
			&r.ClassID, &r.ClassName, &r.Score); err != nil {
			return nil, err
		}
		r.ObservedAt = fromUnixSeconds(observed)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AttachAdminRoutes mounts live SQL and backup endpoints under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Depth camera DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("depthcam-backup-%d.db", time.Now().UnixNano()))
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
		w.Header().Set("Content-Type", "application/gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			log.Printf("Failed to write backup: %v", err)
		}
	}))
}

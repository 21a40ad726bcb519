// Command imu-record captures IMU samples for a fixed duration and writes
// them to CSV, optionally storing the recording in the database.
//
// Usage:
//
//	imu-record [-dev] [-db path] [-config file] [seconds] [output.csv]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/banshee-data/depth.camera/internal/camera"
	"github.com/banshee-data/depth.camera/internal/config"
	"github.com/banshee-data/depth.camera/internal/db"
	"github.com/banshee-data/depth.camera/internal/fsutil"
	"github.com/banshee-data/depth.camera/internal/imurecord"
	"github.com/banshee-data/depth.camera/internal/native"
	"github.com/banshee-data/depth.camera/internal/security"
)

var (
	devMode    = flag.Bool("dev", false, "Use the synthetic camera instead of the native wrapper")
	dbPath     = flag.String("db", "", "Also store the recording in this SQLite database")
	configPath = flag.String("config", "", "Camera config file; export_dir and imu_poll_interval are honoured")
)

const (
	defaultSeconds = 10.0
	defaultOutput  = "imu_record.csv"
)

// exportName keeps the directory part of output and reduces its file name
// to a portable one.
func exportName(output string) string {
	dir, base := filepath.Split(output)
	return filepath.Join(dir, security.SanitizeFilename(base))
}

// parseArgs reads the optional positional duration and output name.
func parseArgs(args []string) (time.Duration, string, error) {
	seconds, output := defaultSeconds, defaultOutput
	if len(args) > 0 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil || v <= 0 {
			return 0, "", fmt.Errorf("invalid duration %q: want positive seconds", args[0])
		}
		seconds = v
	}
	if len(args) > 1 {
		output = exportName(args[1])
	}
	if len(args) > 2 {
		return 0, "", fmt.Errorf("unexpected arguments: %v", args[2:])
	}
	return time.Duration(seconds * float64(time.Second)), output, nil
}

func main() {
	flag.Parse()

	duration, output, err := parseArgs(flag.Args())
	if err != nil {
		log.Fatal(err)
	}

	cfg := config.DefaultCameraConfig()
	if *configPath != "" {
		if cfg, err = config.LoadCameraConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	// Fail before recording if the destination is not allowed.
	if _, err := security.ResolveExportPath(output, cfg.GetExportDir()); err != nil {
		log.Fatalf("invalid output path: %v", err)
	}

	lib, _, err := native.Select(*devMode)
	if err != nil {
		log.Fatalf("failed to open camera library: %v", err)
	}

	sess := camera.NewSession(lib)
	if err := sess.Init(cfg.GetResolution(), cfg.GetFPS()); err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer sess.Release()

	fmt.Printf("Camera: %s\n", sess.ModuleInfo())
	if err := sess.EnableIMU(); err != nil {
		log.Fatalf("IMU: %v", err)
	}
	fmt.Println("IMU: OK")

	rec := imurecord.NewRecorder(sess, nil, cfg.GetIMUPollInterval(), cfg.GetIMUMaxSamples())
	if *dbPath != "" {
		store, err := db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
		rec.WithStore(store, sess.DeviceInfo().String("id", sess.ModuleInfo()))
	}
	rec.OnProgress = func(elapsed time.Duration, total int) {
		fmt.Printf("\r  recorded %.1fs / %.1fs, samples: %d", elapsed.Seconds(), duration.Seconds(), total)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Recording %.1fs of IMU data...\n", duration.Seconds())
	sum, err := rec.Run(ctx, duration)
	fmt.Println()
	if err != nil {
		log.Printf("store failed: %v", err)
	}
	if sum.Interrupted {
		fmt.Println("Interrupted, saving what was recorded")
	}
	fmt.Printf("Recorded %d samples (recording %s)\n", sum.Samples, sum.RecordingID)

	path, err := imurecord.Export(fsutil.OSFileSystem{}, output, cfg.GetExportDir(), rec.Samples())
	if err != nil {
		log.Printf("export failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Saved: %s\n", path)
}

// Command depthcam serves the stereo depth camera over HTTP: MJPEG streams,
// snapshots, session metadata, detections and debug charts, plus a gRPC
// health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/banshee-data/depth.camera/internal/api"
	"github.com/banshee-data/depth.camera/internal/camera"
	"github.com/banshee-data/depth.camera/internal/config"
	"github.com/banshee-data/depth.camera/internal/db"
	"github.com/banshee-data/depth.camera/internal/native"
	"github.com/banshee-data/depth.camera/internal/stream"
	"github.com/banshee-data/depth.camera/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen  = flag.String("grpc-listen", "", "gRPC health listen address (disabled when empty)")
	configPath  = flag.String("config", "", "Camera config file (.json, .yaml or .yml); defaults apply when empty")
	devMode     = flag.Bool("dev", false, "Use the synthetic camera instead of the native wrapper")
	dbPath      = flag.String("db", "depthcam.db", "SQLite database for detections and recordings (disabled when empty)")
	autostart   = flag.Bool("autostart", false, "Start the camera stream immediately")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const shutdownTimeout = 5 * time.Second

// loadConfig reads path, or returns defaults when path is empty.
func loadConfig(path string) (*config.CameraConfig, error) {
	if path == "" {
		return config.DefaultCameraConfig(), nil
	}
	return config.LoadCameraConfig(path)
}

// opener hands out a new session over lib for every stream start.
func opener(lib native.Library) stream.SessionOpener {
	return func() (*camera.Session, error) {
		return camera.NewSession(lib), nil
	}
}

// versionInfo reports the build and whether the native camera would be
// used. A library that fails to open is logged and reported as synthetic.
func versionInfo(dev bool) version.Info {
	_, hardware, err := native.Select(dev)
	if err != nil {
		log.Printf("camera library unavailable: %v", err)
	}
	return version.Current(hardware)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(versionInfo(*devMode))
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	lib, hardware, err := native.Select(*devMode)
	if err != nil {
		log.Fatalf("failed to open camera library: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, lib, hardware)
	stop()
	if err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
	log.Print("graceful shutdown complete")
}

// run serves until ctx is done or a server fails. The camera session and
// the database are released before it returns, on every path.
func run(ctx context.Context, lib native.Library, hardware bool) error {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log.Printf("depthcam %s, camera %v", version.Version, lib)

	var store *db.DB
	if *dbPath != "" {
		store, err = db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer store.Close()
	}

	handler := stream.NewHandler(opener(lib), cfg, nil)
	defer handler.Stop()
	if *autostart {
		if res := handler.Start(); !res.Success {
			log.Printf("autostart failed: %s", *res.Error)
		}
	}

	var grpcLis net.Listener
	if *grpcListen != "" {
		if grpcLis, err = net.Listen("tcp", *grpcListen); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", *grpcListen, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(api.NewServer(handler, cfg, store, hardware).ServeMux()),
	}
	g.Go(func() error {
		log.Printf("HTTP server listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		return nil
	})

	if grpcLis != nil {
		health := api.NewHealth(handler)
		grpcServer := grpc.NewServer()
		health.Register(grpcServer)

		g.Go(func() error {
			log.Printf("gRPC health listening on %s", *grpcListen)
			return grpcServer.Serve(grpcLis)
		})
		g.Go(func() error {
			health.Run(ctx, nil, time.Second)
			grpcServer.GracefulStop()
			return nil
		})
	}

	return g.Wait()
}

// Command device-info prints the module summary, the detailed device
// information and the stereo calibration of the connected camera.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/depth.camera/internal/camera"
	"github.com/banshee-data/depth.camera/internal/config"
	"github.com/banshee-data/depth.camera/internal/native"
)

var (
	devMode    = flag.Bool("dev", false, "Use the synthetic camera instead of the native wrapper")
	configPath = flag.String("config", "", "Path to camera configuration JSON or YAML")
	settle     = flag.Duration("settle", time.Second, "Wait after init before reading metadata")
)

func printInfo(w io.Writer, info camera.Metadata) {
	fmt.Fprintln(w, "\n--- Device info ---")
	if info.Err != nil {
		fmt.Fprintf(w, "  unavailable: %v\n", info.Err)
		return
	}
	if info.Empty() {
		fmt.Fprintln(w, "  unavailable")
		return
	}
	keys := make([]string, 0, len(info.Fields))
	for k := range info.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, info.Fields[k])
	}
}

func printIntrinsics(w io.Writer, side string, in camera.Intrinsics) {
	fmt.Fprintf(w, "\n  [%s camera]\n", strings.ToUpper(side))
	fmt.Fprintf(w, "    resolution: %dx%d\n", in.Width, in.Height)
	fmt.Fprintf(w, "    focal: fx=%.4f, fy=%.4f\n", in.FX, in.FY)
	fmt.Fprintf(w, "    principal point: cx=%.4f, cy=%.4f\n", in.CX, in.CY)
	fmt.Fprintf(w, "    distortion: k1=%.6f, k2=%.6f, t1=%.6f, t2=%.6f\n", in.K1, in.K2, in.T1, in.T2)
	if len(in.P) == 12 {
		fmt.Fprintln(w, "    projection P:")
		for row := 0; row < 3; row++ {
			vals := make([]string, 4)
			for i, v := range in.P[row*4 : (row+1)*4] {
				vals[i] = fmt.Sprintf("%10.4f", v)
			}
			fmt.Fprintf(w, "      [%s]\n", strings.Join(vals, ", "))
		}
	}
}

func printCalibration(w io.Writer, c camera.Calibration) {
	fmt.Fprintln(w, "\n--- Calibration ---")
	if c.Err != nil || c.Empty() {
		fmt.Fprintln(w, "  unavailable")
		return
	}
	st := c.Stereo()
	fmt.Fprintf(w, "  baseline: %g m\n", st.Baseline)
	printIntrinsics(w, "left", st.Left)
	printIntrinsics(w, "right", st.Right)
	for _, p := range c.Problems {
		fmt.Fprintf(w, "  warning: %s\n", p)
	}
}

func main() {
	flag.Parse()

	cfg := config.DefaultCameraConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadCameraConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
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

	time.Sleep(*settle)

	fmt.Println("--- Module ---")
	fmt.Printf("  %s\n", sess.ModuleInfo())
	printInfo(os.Stdout, sess.DeviceInfo())
	printCalibration(os.Stdout, sess.Calibration())
	fmt.Println("\nDone.")
}

package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"tailscale.com/tsweb"

	"github.com/banshee-data/depth.camera/internal/camera"
	"github.com/banshee-data/depth.camera/internal/depthstats"
	"github.com/banshee-data/depth.camera/internal/httputil"
)

// attachDebugRoutes mounts the chart pages under /debug/.
func (s *Server) attachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("imu-chart", "Recent IMU samples (drains the IMU ring)", s.imuChart)
	debug.HandleFunc("depth-regions", "Mean depth per region of the latest plane", s.depthRegionsChart)
	debug.HandleFunc("depth-histogram.png", "Histogram of valid depth values", s.depthHistogram)
	debug.HandleFunc("session", "Live session channel statistics", s.sessionStats)
}

func renderHTML(w http.ResponseWriter, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) imuChart(w http.ResponseWriter, r *http.Request) {
	sess := s.live(w)
	if sess == nil {
		return
	}
	limit, err := queryInt(r, "max", s.cfg.GetIMUMaxSamples(), 1, camera.DefaultIMUSamples)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	f, ok := sess.IMU(limit)
	if !ok {
		httputil.ServiceUnavailable(w, "no imu samples")
		return
	}
	samples := camera.IMUSamples(f)

	x := make([]string, len(samples))
	series := make([][]opts.LineData, 6)
	for i, smp := range samples {
		x[i] = fmt.Sprintf("%.3f", smp.Timestamp)
		for k := 0; k < 3; k++ {
			series[k] = append(series[k], opts.LineData{Value: smp.Accel[k]})
			series[3+k] = append(series[3+k], opts.LineData{Value: smp.Gyro[k]})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "IMU", Theme: "dark", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "IMU samples", Subtitle: fmt.Sprintf("session=%s samples=%d", sess.ID(), len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
	)
	line.SetXAxis(x)
	for i, name := range []string{"accel_x", "accel_y", "accel_z", "gyro_x", "gyro_y", "gyro_z"} {
		line.AddSeries(name, series[i])
	}
	renderHTML(w, func(buf *bytes.Buffer) error { return line.Render(buf) })
}

func (s *Server) depthRegionsChart(w http.ResponseWriter, r *http.Request) {
	rows, err := queryInt(r, "rows", 3, 1, 64)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	cols, err := queryInt(r, "cols", 3, 1, 64)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	depth, ok := s.stream.LatestDepth()
	if !ok {
		httputil.ServiceUnavailable(w, "no depth")
		return
	}
	regions, err := depthstats.Regions(depth, rows, cols)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	x := make([]string, len(regions))
	y := make([]opts.BarData, len(regions))
	for i, reg := range regions {
		x[i] = fmt.Sprintf("r%dc%d", reg.Row, reg.Col)
		y[i] = opts.BarData{Value: reg.MeanMM}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Depth regions", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean depth per region (mm)", Subtitle: fmt.Sprintf("%dx%d grid over %dx%d", rows, cols, depth.Width(), depth.Height())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("mean_mm", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	renderHTML(w, func(buf *bytes.Buffer) error { return bar.Render(buf) })
}

func (s *Server) depthHistogram(w http.ResponseWriter, r *http.Request) {
	bins, err := queryInt(r, "bins", 50, 2, 500)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	depth, ok := s.stream.LatestDepth()
	if !ok {
		httputil.ServiceUnavailable(w, "no depth")
		return
	}
	values := depthstats.Histogram(depth, uint16(s.cfg.GetDepthMaxRangeMM()))
	if len(values) == 0 {
		httputil.ServiceUnavailable(w, "no valid depth")
		return
	}

	p := plot.New()
	p.Title.Text = "Valid depth"
	p.X.Label.Text = "depth (mm)"
	p.Y.Label.Text = "pixels"
	hist, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	p.Add(hist)

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) sessionStats(w http.ResponseWriter, r *http.Request) {
	sess := s.live(w)
	if sess == nil {
		return
	}
	out := map[string]any{
		"session_id": sess.ID(),
		"state":      sess.State().String(),
		"resolution": sess.Resolution(),
		"fps":        sess.FPS(),
	}
	channels := map[string]any{}
	for ch, st := range sess.Stats() {
		channels[ch.String()] = map[string]any{
			"enabled": sess.Enabled(ch),
			"shape":   sess.Shape(ch),
			"stats":   st,
		}
	}
	out["channels"] = channels
	httputil.WriteJSONOK(w, out)
}

// Package api serves the camera stream, its control endpoints and the
// session metadata over HTTP.
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/banshee-data/depth.camera/internal/camera"
	"github.com/banshee-data/depth.camera/internal/config"
	"github.com/banshee-data/depth.camera/internal/db"
	"github.com/banshee-data/depth.camera/internal/depthstats"
	"github.com/banshee-data/depth.camera/internal/httputil"
	"github.com/banshee-data/depth.camera/internal/monitoring"
	"github.com/banshee-data/depth.camera/internal/stream"
	"github.com/banshee-data/depth.camera/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// SnapshotQuality is the JPEG quality of /snapshot.
const SnapshotQuality = 90

const mjpegBoundary = "frame"

//go:embed static/index.html
var indexHTML []byte

type Server struct {
	stream *stream.Handler
	cfg    *config.CameraConfig
	db     *db.DB
	native bool
}

// NewServer wires the HTTP surface to a stream handler. db may be nil, in
// which case detections are not logged and history is unavailable. native
// reports whether the binary talks to real hardware.
func NewServer(h *stream.Handler, cfg *config.CameraConfig, db *db.DB, native bool) *Server {
	if cfg == nil {
		cfg = config.EmptyCameraConfig()
	}
	return &Server{
		stream: h,
		cfg:    cfg,
		db:     db,
		native: native,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.index)
	mux.HandleFunc("/api/status", s.status)
	mux.HandleFunc("/api/start", s.start)
	mux.HandleFunc("/api/stop", s.stop)
	mux.HandleFunc("/api/config", s.config)
	mux.HandleFunc("/api/calibration", s.calibration)
	mux.HandleFunc("/api/device", s.device)
	mux.HandleFunc("/api/detections", s.detections)
	mux.HandleFunc("/api/depth/regions", s.depthRegions)
	mux.HandleFunc("/api/recordings", s.recordings)
	mux.HandleFunc("/api/version", s.version)
	mux.HandleFunc("/snapshot", s.snapshot)
	mux.HandleFunc("/stream", s.mjpeg(s.stream.FrameJPEG))
	mux.HandleFunc("/stream/overlay", s.mjpeg(s.stream.OverlayJPEG))
	mux.Handle("/metrics", monitoring.Handler())
	s.attachDebugRoutes(mux)
	if s.db != nil {
		s.db.AttachAdminRoutes(mux)
	}
	return mux
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	httputil.MethodNotAllowed(w)
	return false
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, s.stream.Status())
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	httputil.WriteJSONOK(w, s.stream.Start())
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	httputil.WriteJSONOK(w, s.stream.Stop())
}

type configBody struct {
	Alpha *float64 `json:"alpha"`
}

func (s *Server) config(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.cfg)
	case http.MethodPost:
		var body configBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid config body: %v", err))
			return
		}
		if body.Alpha != nil {
			if math.IsNaN(*body.Alpha) {
				httputil.BadRequest(w, "alpha must be a number")
				return
			}
			s.stream.SetAlpha(*body.Alpha)
		}
		httputil.WriteJSONOK(w, map[string]bool{"success": true})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	frame, ok := s.stream.FrameJPEG(SnapshotQuality)
	if !ok {
		httputil.ServiceUnavailable(w, "no frame")
		return
	}
	httputil.WriteJPEG(w, frame)
}

// mjpeg streams frames from next as multipart/x-mixed-replace, paced to the
// configured stream rate, until the client goes away. Polls that produce no
// frame are skipped.
func (s *Server) mjpeg(next func(quality int) ([]byte, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httputil.InternalServerError(w, "streaming unsupported")
			return
		}
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		quality := s.cfg.GetJPEGQuality()
		limiter := rate.NewLimiter(rate.Limit(s.cfg.GetStreamFPS()), 1)
		if err := writeParts(r.Context(), w, flusher, limiter, func() ([]byte, bool) { return next(quality) }); err != nil {
			monitoring.Logf("mjpeg %s: %v", r.URL.Path, err)
		}
	}
}

func writeParts(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, limiter *rate.Limiter, next func() ([]byte, bool)) error {
	for {
		if err := limiter.Wait(ctx); err != nil {
			// Client disconnected.
			return nil
		}
		frame, ok := next()
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(frame)); err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return err
		}
		flusher.Flush()
	}
}

// live returns the running session or writes a 503.
func (s *Server) live(w http.ResponseWriter) *camera.Session {
	sess := s.stream.Session()
	if sess == nil {
		httputil.ServiceUnavailable(w, "camera not running")
	}
	return sess
}

type calibrationResponse struct {
	Complete bool                     `json:"complete"`
	Problems []string                 `json:"problems,omitempty"`
	Error    string                   `json:"error,omitempty"`
	Stereo   camera.StereoCalibration `json:"stereo"`
	Fields   map[string]any           `json:"fields"`
}

func (s *Server) calibration(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sess := s.live(w)
	if sess == nil {
		return
	}
	c := sess.Calibration()
	resp := calibrationResponse{
		Complete: c.Complete(),
		Problems: c.Problems,
		Stereo:   c.Stereo(),
		Fields:   c.Fields,
	}
	if c.Err != nil {
		resp.Error = c.Err.Error()
	}
	httputil.WriteJSONOK(w, resp)
}

type deviceResponse struct {
	SessionID  string                        `json:"session_id"`
	ModuleInfo string                        `json:"module_info"`
	Callbacks  int                           `json:"callbacks"`
	IMUPending int                           `json:"imu_pending"`
	Info       map[string]any                `json:"info"`
	Stats      map[string]camera.ChannelStats `json:"stats"`
}

func (s *Server) device(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sess := s.live(w)
	if sess == nil {
		return
	}
	stats := make(map[string]camera.ChannelStats)
	for ch, st := range sess.Stats() {
		stats[ch.String()] = st
	}
	httputil.WriteJSONOK(w, deviceResponse{
		SessionID:  sess.ID(),
		ModuleInfo: sess.ModuleInfo(),
		Callbacks:  sess.CallbackCount(),
		IMUPending: sess.IMUPending(),
		Info:       sess.DeviceInfo().Fields,
		Stats:      stats,
	})
}

func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

type detectionsResponse struct {
	Detections []camera.Detection `json:"detections"`
	Fresh      bool               `json:"fresh"`
}

// detections polls the detector. ?history=N returns the logged detections
// instead.
func (s *Server) detections(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if r.URL.Query().Has("history") {
		s.detectionHistory(w, r)
		return
	}
	maxBoxes, err := queryInt(r, "max", s.cfg.GetMaxBoxes(), 1, 256)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sess := s.live(w)
	if sess == nil {
		return
	}
	dets, ok := sess.Detections(maxBoxes)
	if ok && s.db != nil {
		if err := s.db.RecordDetections(sess.ID(), time.Now(), dets); err != nil {
			monitoring.Logf("detections: log failed: %v", err)
		}
	}
	if dets == nil {
		dets = []camera.Detection{}
	}
	httputil.WriteJSONOK(w, detectionsResponse{Detections: dets, Fresh: ok})
}

func (s *Server) detectionHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	limit, err := queryInt(r, "history", 100, 1, 10000)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	recs, err := s.db.RecentDetections(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if recs == nil {
		recs = []db.DetectionRecord{}
	}
	httputil.WriteJSONOK(w, recs)
}

func (s *Server) depthRegions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
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
	httputil.WriteJSONOK(w, map[string]any{
		"width":   depth.Width(),
		"height":  depth.Height(),
		"regions": regions,
	})
}

func (s *Server) recordings(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	limit, err := queryInt(r, "limit", 50, 1, 1000)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	recs, err := s.db.Recordings(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if recs == nil {
		recs = []db.Recording{}
	}
	httputil.WriteJSONOK(w, recs)
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Current(s.native))
}

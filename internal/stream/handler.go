// Package stream turns a camera session into on-demand JPEG frames for the
// MJPEG endpoints. Frames are polled when a client asks for one; nothing
// runs in the background.
package stream

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/depth.camera/internal/camera"
	"github.com/banshee-data/depth.camera/internal/config"
	"github.com/banshee-data/depth.camera/internal/monitoring"
	"github.com/banshee-data/depth.camera/internal/timeutil"
)

// Stream names used for metrics.
const (
	StreamRaw     = "raw"
	StreamOverlay = "overlay"
)

// SessionOpener returns a fresh, uninitialised session. A released session
// cannot be initialised again, so every Start asks for a new one.
type SessionOpener func() (*camera.Session, error)

// Result is the outcome of Start and Stop.
type Result struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

func ok() Result { return Result{Success: true} }

func failed(format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	return Result{Error: &msg}
}

// Status is the stream state reported by /api/status.
type Status struct {
	Running    bool    `json:"running"`
	FPS        float64 `json:"fps"`
	Resolution string  `json:"resolution"`
	Alpha      float64 `json:"alpha"`
}

// Handler owns at most one running session.
type Handler struct {
	open  SessionOpener
	cfg   *config.CameraConfig
	clock timeutil.Clock

	mu         sync.Mutex
	session    *camera.Session
	running    bool
	alpha      float64
	lastFrame  *image.Gray
	lastDepth  *camera.Frame[uint16]
	frameCount int
	startedAt  time.Time
	width      int
	height     int
}

// NewHandler creates a stopped handler. A nil cfg uses defaults and a nil
// clock uses wall time.
func NewHandler(open SessionOpener, cfg *config.CameraConfig, clock timeutil.Clock) *Handler {
	if cfg == nil {
		cfg = config.EmptyCameraConfig()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Handler{
		open:  open,
		cfg:   cfg,
		clock: clock,
		alpha: cfg.GetOverlayAlpha(),
	}
}

// IsRunning reports whether a session is live.
func (h *Handler) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Session returns the live session, or nil when stopped.
func (h *Handler) Session() *camera.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil
	}
	return h.session
}

// Start opens and initialises a session. Starting a running handler is a
// no-op. Depth and the optional channels are best effort: a channel that
// fails to enable is logged and the stream runs without it.
func (h *Handler) Start() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ok()
	}

	s, err := h.open()
	if err != nil {
		return failed("%v", err)
	}
	if err := s.Init(h.cfg.GetResolution(), h.cfg.GetFPS()); err != nil {
		var ie *camera.InitError
		if errors.As(err, &ie) {
			return failed("SDK init failed: %d", ie.Status)
		}
		return failed("%v", err)
	}

	h.enableOptional(s)

	h.session = s
	h.running = true
	h.frameCount = 0
	h.startedAt = h.clock.Now()
	return ok()
}

func (h *Handler) enableOptional(s *camera.Session) {
	type opt struct {
		on     bool
		ch     camera.Channel
		enable func() error
	}
	opts := []opt{
		{h.cfg.GetEnableDepth(), camera.ChannelDepth, func() error {
			return s.EnableDepth(camera.DepthMode(h.cfg.GetDepthMode()))
		}},
		{h.cfg.GetEnableDisparity(), camera.ChannelDisparity, func() error {
			return s.EnableDisparity(camera.DisparityMode(h.cfg.GetDisparityMode()))
		}},
		{h.cfg.GetEnableRectify(), camera.ChannelRectified, s.EnableRectify},
		{h.cfg.GetEnablePoints(), camera.ChannelPoints, s.EnablePoints},
		{h.cfg.GetEnableIMU(), camera.ChannelIMU, s.EnableIMU},
		{h.cfg.GetEnableDetector(), camera.ChannelDetections, s.EnableDetector},
	}
	for _, o := range opts {
		if !o.on {
			continue
		}
		if err := o.enable(); err != nil {
			monitoring.Logf("stream: %s unavailable: %v", o.ch, err)
		}
	}
}

// Stop releases the session and clears cached frames. It always succeeds.
func (h *Handler) Stop() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session != nil {
		h.session.Release()
		h.session = nil
	}
	h.running = false
	h.lastFrame = nil
	h.lastDepth = nil
	h.frameCount = 0
	h.width, h.height = 0, 0
	return ok()
}

// SetAlpha sets the overlay opacity, clamped to [0, 1].
func (h *Handler) SetAlpha(alpha float64) {
	if math.IsNaN(alpha) {
		return
	}
	h.mu.Lock()
	h.alpha = min(max(alpha, 0), 1)
	h.mu.Unlock()
}

// Alpha returns the overlay opacity.
func (h *Handler) Alpha() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alpha
}

// Status reports running state, frame rate since Start and frame size.
// The rate reads zero during the first second.
func (h *Handler) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := Status{
		Running:    h.running,
		Resolution: fmt.Sprintf("%dx%d", h.width, h.height),
		Alpha:      h.alpha,
	}
	if h.running {
		if elapsed := h.clock.Since(h.startedAt).Seconds(); elapsed > 1 {
			st.FPS = math.Round(float64(h.frameCount)/elapsed*10) / 10
		}
	}
	return st
}

// poll pulls the newest frame and depth plane. Side-by-side stereo frames
// keep their left half. Callers hold h.mu.
func (h *Handler) poll() {
	if !h.running || h.session == nil {
		return
	}
	if f, ok := h.session.Image(); ok {
		gray := camera.Gray(f)
		w, ht := gray.Rect.Dx(), gray.Rect.Dy()
		if float64(w) > float64(ht)*1.5 {
			gray = gray.SubImage(image.Rect(0, 0, w/2, ht)).(*image.Gray)
		}
		h.lastFrame = gray
		h.width, h.height = gray.Rect.Dx(), gray.Rect.Dy()
		h.frameCount++
	}
	if d, ok := h.session.Depth(); ok {
		h.lastDepth = &d
	}
}

// LatestDepth returns a copy of the most recent depth plane, polling first.
func (h *Handler) LatestDepth() (camera.Frame[uint16], bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.poll()
	if h.lastDepth == nil {
		return camera.Frame[uint16]{}, false
	}
	return h.lastDepth.Clone(), true
}

// FrameJPEG encodes the newest grayscale frame. ok is false when stopped or
// before the first frame arrives.
func (h *Handler) FrameJPEG(quality int) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil, false
	}
	h.poll()
	if h.lastFrame == nil {
		return nil, false
	}
	buf, err := encode(h.lastFrame, quality)
	if err != nil {
		monitoring.Logf("stream: encode frame: %v", err)
		return nil, false
	}
	monitoring.RecordStreamFrame(StreamRaw)
	return buf, true
}

// OverlayJPEG encodes the newest frame with depth blended over it.
func (h *Handler) OverlayJPEG(quality int) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil, false
	}
	h.poll()
	if h.lastFrame == nil {
		return nil, false
	}
	img := Overlay(h.lastFrame, h.lastDepth, h.alpha, h.cfg.GetDepthMaxRangeMM())
	buf, err := encode(img, quality)
	if err != nil {
		monitoring.Logf("stream: encode overlay: %v", err)
		return nil, false
	}
	monitoring.RecordStreamFrame(StreamOverlay)
	return buf, true
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: min(max(quality, 1), 100)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package camera is the runtime over the native stereo camera library. A
// Session owns one device connection: it initialises the native layer,
// enables channels, and polls each channel through a typed accessor that
// keeps its own resident buffer.
//
// Polls never block and never fail. A channel with nothing new reports
// absent, which is the normal outcome of a loop polling faster than the
// device produces.
package camera

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/depth.camera/internal/monitoring"
	"github.com/banshee-data/depth.camera/internal/native"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateReleased:
		return "released"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Default record caps for IMU and detector polls.
const (
	DefaultIMUSamples = native.IMURingSize
	DefaultMaxBoxes   = 100
)

// Session is one device connection. Polls of different channels may run
// concurrently; polls of the same channel serialise on that channel's
// buffer.
type Session struct {
	id  string
	lib native.Library

	// mu guards state and enabled. Polls hold it for reading so Release
	// waits for in-flight fills before dropping buffers.
	mu         sync.RWMutex
	state      State
	resolution int
	fps        int
	enabled    map[Channel]bool

	image         *accessor[uint8]
	depth         *accessor[uint16]
	disparity     *accessor[float32]
	rectified     *accessor[uint8]
	points        *accessor[float32]
	imu           *accessor[float64]
	detections    *accessor[int32]
	detectorImage *accessor[uint8]
}

// NewSession wraps lib. The session is uninitialised until Init succeeds.
func NewSession(lib native.Library) *Session {
	return &Session{
		id:            uuid.NewString(),
		lib:           lib,
		enabled:       make(map[Channel]bool),
		image:         newAccessor[uint8](ChannelImage),
		depth:         newAccessor[uint16](ChannelDepth),
		disparity:     newAccessor[float32](ChannelDisparity),
		rectified:     newAccessor[uint8](ChannelRectified),
		points:        newAccessor[float32](ChannelPoints),
		imu:           newAccessor[float64](ChannelIMU),
		detections:    newAccessor[int32](ChannelDetections),
		detectorImage: newAccessor[uint8](ChannelDetectorImage),
	}
}

// ID identifies the session in logs and recordings.
func (s *Session) ID() string {
	return s.id
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Resolution and FPS report the values passed to a successful Init.
func (s *Session) Resolution() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolution
}

func (s *Session) FPS() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fps
}

// Init opens the device. The raw image channel is available once Init
// succeeds; every other channel needs its Enable call.
func (s *Session) Init(resolution, fps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateInitialized:
		return ErrAlreadyInitialized
	case StateReleased:
		return ErrReleased
	}
	if status := s.lib.Init(resolution, fps); status != native.StatusOK {
		monitoring.Logf("camera %s: init failed with status %d", s.id, status)
		return &InitError{Status: status, Resolution: resolution, FPS: fps}
	}
	s.state = StateInitialized
	s.resolution, s.fps = resolution, fps
	s.enabled[ChannelImage] = true
	monitoring.RecordSessionStart()
	monitoring.Logf("camera %s: initialized (resolution %d, %d fps)", s.id, resolution, fps)
	return nil
}

// Release closes the device and drops every resident buffer. It is safe
// to call at any time and any number of times.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInitialized {
		return
	}
	s.lib.Release()
	s.state = StateReleased
	s.enabled = make(map[Channel]bool)
	s.image.reset()
	s.depth.reset()
	s.disparity.reset()
	s.rectified.reset()
	s.points.reset()
	s.imu.reset()
	s.detections.reset()
	s.detectorImage.reset()
	monitoring.RecordSessionEnd()
	monitoring.Logf("camera %s: released", s.id)
}

// IsInitialized reports whether the session is live.
func (s *Session) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateInitialized && s.lib.IsInitialized()
}

// Enabled reports whether ch has been enabled successfully.
func (s *Session) Enabled(ch Channel) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[ch]
}

// enable runs call and, on success, marks ch and any channels it feeds as
// enabled in the same critical section.
func (s *Session) enable(call func() int, ch Channel, feeds ...Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateReleased:
		return ErrReleased
	}
	if status := call(); status != native.StatusOK {
		monitoring.Logf("camera %s: enable %s failed with status %d", s.id, ch, status)
		return &EnableError{Channel: ch, Status: status}
	}
	s.enabled[ch] = true
	for _, f := range feeds {
		s.enabled[f] = true
	}
	return nil
}

// EnableDepth starts the depth processor.
func (s *Session) EnableDepth(mode DepthMode) error {
	return s.enable(func() int { return s.lib.EnableDepth(int(mode)) }, ChannelDepth)
}

// EnableDisparity starts the disparity processor.
func (s *Session) EnableDisparity(mode DisparityMode) error {
	return s.enable(func() int { return s.lib.EnableDisparity(int(mode)) }, ChannelDisparity)
}

// EnableRectify starts the rectification processor.
func (s *Session) EnableRectify() error {
	return s.enable(s.lib.EnableRectify, ChannelRectified)
}

// EnablePoints starts the point cloud processor.
func (s *Session) EnablePoints() error {
	return s.enable(s.lib.EnablePoints, ChannelPoints)
}

// EnableIMU starts IMU delivery.
func (s *Session) EnableIMU() error {
	return s.enable(s.lib.EnableIMU, ChannelIMU)
}

// EnableDetector starts the on-device detector. It feeds both the
// detections and detector image channels.
func (s *Session) EnableDetector() error {
	return s.enable(s.lib.EnableDetector, ChannelDetections, ChannelDetectorImage)
}

// live holds the read lock for a poll. It returns false, without holding
// the lock, when the session is not initialised.
func (s *Session) live() bool {
	s.mu.RLock()
	if s.state != StateInitialized {
		s.mu.RUnlock()
		return false
	}
	return true
}

// Image polls the raw stereo frame. The returned data aliases the
// session's buffer and is overwritten by the next Image call.
func (s *Session) Image() (Frame[uint8], bool) {
	if !s.live() {
		return Frame[uint8]{}, false
	}
	defer s.mu.RUnlock()
	return s.image.pollGrid(s.lib.ImageInfo, s.lib.Frame)
}

// Depth polls the depth map in millimetres.
func (s *Session) Depth() (Frame[uint16], bool) {
	if !s.live() {
		return Frame[uint16]{}, false
	}
	defer s.mu.RUnlock()
	return s.depth.pollGrid(func() (int, int, int) {
		w, h := s.lib.DepthSize()
		return w, h, 1
	}, s.lib.Depth)
}

// Disparity polls the disparity map.
func (s *Session) Disparity() (Frame[float32], bool) {
	if !s.live() {
		return Frame[float32]{}, false
	}
	defer s.mu.RUnlock()
	return s.disparity.pollGrid(func() (int, int, int) {
		w, h := s.lib.DisparitySize()
		return w, h, 1
	}, s.lib.Disparity)
}

// Rectified polls the rectified image as height x width x channels.
func (s *Session) Rectified() (Frame[uint8], bool) {
	if !s.live() {
		return Frame[uint8]{}, false
	}
	defer s.mu.RUnlock()
	return s.rectified.pollGrid(s.lib.RectifiedInfo, s.lib.Rectified)
}

// Points polls the point cloud as N x 3 (x, y, z in metres).
func (s *Session) Points() (Frame[float32], bool) {
	if !s.live() {
		return Frame[float32]{}, false
	}
	defer s.mu.RUnlock()
	return s.points.pollPoints(func() int {
		_, _, n := s.lib.PointsSize()
		return n
	}, s.lib.Points)
}

// IMU drains up to maxSamples of the most recent IMU samples as N x 7.
func (s *Session) IMU(maxSamples int) (Frame[float64], bool) {
	if !s.live() {
		return Frame[float64]{}, false
	}
	defer s.mu.RUnlock()
	return s.imu.pollRecords(maxSamples, s.lib.IMU)
}

// IMUPending reports how many IMU samples the native ring holds.
func (s *Session) IMUPending() int {
	if !s.live() {
		return 0
	}
	defer s.mu.RUnlock()
	return s.lib.IMUCount()
}

// DetectionsRaw polls the latest detector result as N x 6 tuples.
func (s *Session) DetectionsRaw(maxBoxes int) (Frame[int32], bool) {
	if !s.live() {
		return Frame[int32]{}, false
	}
	defer s.mu.RUnlock()
	return s.detections.pollRecords(maxBoxes, s.lib.DetectorBoxes)
}

// Detections polls and decodes the latest detector result.
func (s *Session) Detections(maxBoxes int) ([]Detection, bool) {
	raw, ok := s.DetectionsRaw(maxBoxes)
	if !ok {
		return nil, false
	}
	out := DecodeDetections(raw.Data)
	for _, d := range out {
		monitoring.RecordDetection(d.ClassName)
	}
	return out, true
}

// DetectorImage returns a copy of the image the detector last ran on. The
// native layer keeps no ready flag for it, so the same image is returned
// until the detector produces another.
func (s *Session) DetectorImage() (Frame[uint8], bool) {
	if !s.live() {
		return Frame[uint8]{}, false
	}
	defer s.mu.RUnlock()
	return s.detectorImage.pollGrid(s.lib.DetectorImageInfo, s.lib.DetectorImage)
}

// ModuleInfo returns the native module summary, or
// native.NotInitializedInfo when the session is not live.
func (s *Session) ModuleInfo() string {
	if !s.live() {
		return native.NotInitializedInfo
	}
	defer s.mu.RUnlock()
	return s.lib.ModuleInfo()
}

// CallbackCount reports how many raw frames the native layer has received.
func (s *Session) CallbackCount() int {
	if !s.live() {
		return 0
	}
	defer s.mu.RUnlock()
	return s.lib.CallbackCount()
}

// Calibration decodes the stereo calibration. An unavailable or malformed
// payload yields an empty, incomplete Calibration.
func (s *Session) Calibration() Calibration {
	if !s.live() {
		return DecodeCalibration("{}")
	}
	defer s.mu.RUnlock()
	return DecodeCalibration(s.lib.Calibration())
}

// DeviceInfo decodes the detailed device information.
func (s *Session) DeviceInfo() Metadata {
	if !s.live() {
		return DecodeMetadata("{}")
	}
	defer s.mu.RUnlock()
	return DecodeMetadata(s.lib.DeviceInfoDetailed())
}

// Stats returns the poll counters of every channel.
func (s *Session) Stats() map[Channel]ChannelStats {
	return map[Channel]ChannelStats{
		ChannelImage:         s.image.snapshot(),
		ChannelDepth:         s.depth.snapshot(),
		ChannelDisparity:     s.disparity.snapshot(),
		ChannelRectified:     s.rectified.snapshot(),
		ChannelPoints:        s.points.snapshot(),
		ChannelIMU:           s.imu.snapshot(),
		ChannelDetections:    s.detections.snapshot(),
		ChannelDetectorImage: s.detectorImage.snapshot(),
	}
}

// Shape queries the native layer for the current shape of ch without
// polling it. Record channels report their pending count.
func (s *Session) Shape(ch Channel) []int {
	if !s.live() {
		return nil
	}
	defer s.mu.RUnlock()
	switch ch {
	case ChannelImage:
		w, h, c := s.lib.ImageInfo()
		return []int{h, w, c}
	case ChannelDepth:
		w, h := s.lib.DepthSize()
		return []int{h, w}
	case ChannelDisparity:
		w, h := s.lib.DisparitySize()
		return []int{h, w}
	case ChannelRectified:
		w, h, c := s.lib.RectifiedInfo()
		return []int{h, w, c}
	case ChannelPoints:
		_, _, n := s.lib.PointsSize()
		return []int{n, 3}
	case ChannelIMU:
		return []int{s.lib.IMUCount(), native.IMUFields}
	case ChannelDetectorImage:
		w, h, c := s.lib.DetectorImageInfo()
		return []int{h, w, c}
	}
	return nil
}

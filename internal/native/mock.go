package native

import (
	"fmt"
	"sync"
)

// slot holds the latest frame of one channel. Publishing overwrites the
// frame; a frame that was never filled before being overwritten counts as
// dropped.
type slot[T any] struct {
	width, height, channels int
	data                    []T
	ready                   bool
	drops                   uint64
}

func (s *slot[T]) publish(width, height, channels int, data []T) {
	if s.ready {
		s.drops++
	}
	s.width, s.height, s.channels = width, height, channels
	s.data = append(s.data[:0], data...)
	s.ready = true
}

// fill copies the pending frame into buf and clears the ready flag.
func (s *slot[T]) fill(buf []T) int {
	if !s.ready || len(s.data) == 0 {
		return 0
	}
	if len(buf) < len(s.data) {
		return FillTooSmall
	}
	copy(buf, s.data)
	s.ready = false
	return len(s.data)
}

func (s *slot[T]) reset() {
	*s = slot[T]{}
}

// DetectionBox is one detector result as the wrapper packs it.
type DetectionBox struct {
	X, Y, W, H int32
	ClassID    int32
	ScoreMilli int32
}

// MockLibrary implements Library in memory. Frames are published with the
// Publish* helpers and consumed by the fill calls with the same semantics as
// the wrapper: 0 when nothing new has arrived, FillTooSmall when the buffer
// is short, otherwise the number of elements written.
type MockLibrary struct {
	mu sync.Mutex

	// InitStatus is returned by Init when non-zero.
	InitStatus int
	// EnableStatus overrides the status returned by an enable call, keyed
	// by channel name.
	EnableStatus map[string]int

	initialized bool
	enabled     map[string]bool
	calls       map[string]int
	callbacks   int

	staleSize  map[string]bool
	panicFill  map[string]bool
	moduleText string
	calibText  string
	deviceText string

	image     slot[uint8]
	depth     slot[uint16]
	disparity slot[float32]
	rectified slot[uint8]
	points    slot[float32]
	boxes     slot[int32]
	detImage  slot[uint8]
	imu       []float64
	imuDrops  uint64
}

// NewMockLibrary returns an uninitialised mock.
func NewMockLibrary() *MockLibrary {
	return &MockLibrary{
		EnableStatus: make(map[string]int),
		enabled:      make(map[string]bool),
		calls:        make(map[string]int),
		staleSize:    make(map[string]bool),
		panicFill:    make(map[string]bool),
		calibText:    "{}",
		deviceText:   "{}",
	}
}

func (m *MockLibrary) count(name string) {
	m.calls[name]++
}

// CallCount reports how many times the named entry point was called.
func (m *MockLibrary) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// Drops reports how many published frames on a channel were overwritten
// before anyone filled them.
func (m *MockLibrary) Drops(channel string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch channel {
	case ChannelImage:
		return m.image.drops
	case ChannelDepth:
		return m.depth.drops
	case ChannelDisparity:
		return m.disparity.drops
	case ChannelRectified:
		return m.rectified.drops
	case ChannelPoints:
		return m.points.drops
	case ChannelDetector:
		return m.boxes.drops
	case ChannelDetectorImage:
		return m.detImage.drops
	case ChannelIMU:
		return m.imuDrops
	}
	return 0
}

// SetStaleSize makes the size query for a channel keep reporting its last
// shape while fills return 0, as the wrapper does mid-reconfiguration.
func (m *MockLibrary) SetStaleSize(channel string, stale bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleSize[channel] = stale
}

// SetPanicOnFill makes the fill call for a channel panic.
func (m *MockLibrary) SetPanicOnFill(channel string, panics bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicFill[channel] = panics
}

// SetCalibration sets the text returned by Calibration.
func (m *MockLibrary) SetCalibration(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calibText = text
}

// SetDeviceInfo sets the text returned by DeviceInfoDetailed.
func (m *MockLibrary) SetDeviceInfo(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceText = text
}

// SetModuleInfo sets the text returned by ModuleInfo once initialised.
func (m *MockLibrary) SetModuleInfo(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moduleText = text
}

// Enabled reports whether an enable call for the channel succeeded.
func (m *MockLibrary) Enabled(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[channel]
}

// guard panics when panic injection is configured for channel.
// Callers hold m.mu.
func (m *MockLibrary) guard(channel string) {
	if m.panicFill[channel] {
		panic(fmt.Sprintf("mock native fault on %s", channel))
	}
}

func (m *MockLibrary) Init(resolution, fps int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("init")
	if m.initialized {
		return StatusNoDevice
	}
	if m.InitStatus != StatusOK {
		return m.InitStatus
	}
	m.initialized = true
	return StatusOK
}

func (m *MockLibrary) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("release")
	m.initialized = false
	m.enabled = make(map[string]bool)
	m.callbacks = 0
	m.image.reset()
	m.depth.reset()
	m.disparity.reset()
	m.rectified.reset()
	m.points.reset()
	m.boxes.reset()
	m.detImage.reset()
	m.imu = nil
}

func (m *MockLibrary) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

func (m *MockLibrary) CallbackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callbacks
}

func (m *MockLibrary) ModuleInfo() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return NotInitializedInfo
	}
	if m.moduleText == "" {
		return "ID: mock, FW: 0.0.0"
	}
	return m.moduleText
}

func (m *MockLibrary) enable(channel string) int {
	m.count("enable_" + channel)
	if !m.initialized {
		return StatusNoDevice
	}
	if status, ok := m.EnableStatus[channel]; ok && status != StatusOK {
		return status
	}
	m.enabled[channel] = true
	return StatusOK
}

func (m *MockLibrary) EnableDepth(mode int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enable(ChannelDepth)
}

func (m *MockLibrary) EnableDisparity(mode int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enable(ChannelDisparity)
}

func (m *MockLibrary) EnableRectify() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enable(ChannelRectified)
}

func (m *MockLibrary) EnablePoints() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enable(ChannelPoints)
}

func (m *MockLibrary) EnableIMU() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enable(ChannelIMU)
}

func (m *MockLibrary) EnableDetector() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enable(ChannelDetector)
}

// PublishImage stores a raw frame. It is visible once the mock is
// initialised.
func (m *MockLibrary) PublishImage(width, height, channels int, data []uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.image.publish(width, height, channels, data)
	m.callbacks++
}

// PublishDepth stores a depth map in millimetres.
func (m *MockLibrary) PublishDepth(width, height int, data []uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth.publish(width, height, 1, data)
}

// PublishDisparity stores a disparity map.
func (m *MockLibrary) PublishDisparity(width, height int, data []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disparity.publish(width, height, 1, data)
}

// PublishRectified stores a rectified image.
func (m *MockLibrary) PublishRectified(width, height, channels int, data []uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rectified.publish(width, height, channels, data)
}

// PublishPoints stores a point cloud of len(xyz)/3 points.
func (m *MockLibrary) PublishPoints(width, height int, xyz []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points.publish(width, height, 3, xyz)
}

// PublishIMU appends samples of IMUFields values each to the ring. The
// oldest samples are discarded once IMURingSize is exceeded.
func (m *MockLibrary) PublishIMU(samples ...[IMUFields]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		m.imu = append(m.imu, s[:]...)
	}
	if over := len(m.imu)/IMUFields - IMURingSize; over > 0 {
		m.imu = append(m.imu[:0], m.imu[over*IMUFields:]...)
		m.imuDrops += uint64(over)
	}
}

// PublishDetections stores a detector result. A nil image keeps the
// previous detector image.
func (m *MockLibrary) PublishDetections(boxes []DetectionBox, width, height, channels int, image []uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(boxes) > MaxDetectorBoxes {
		boxes = boxes[:MaxDetectorBoxes]
	}
	flat := make([]int32, 0, len(boxes)*BoxFields)
	for _, b := range boxes {
		flat = append(flat, b.X, b.Y, b.W, b.H, b.ClassID, b.ScoreMilli)
	}
	m.boxes.publish(len(boxes), 1, BoxFields, flat)
	if image != nil {
		m.detImage.publish(width, height, channels, image)
	}
}

func (m *MockLibrary) ImageInfo() (width, height, channels int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return 0, 0, 0
	}
	return m.image.width, m.image.height, m.image.channels
}

func (m *MockLibrary) Frame(buf []uint8) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("get_frame")
	m.guard(ChannelImage)
	if !m.initialized || m.staleSize[ChannelImage] {
		return 0
	}
	return m.image.fill(buf)
}

func (m *MockLibrary) DepthSize() (width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled[ChannelDepth] {
		return 0, 0
	}
	return m.depth.width, m.depth.height
}

func (m *MockLibrary) Depth(buf []uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("get_depth")
	m.guard(ChannelDepth)
	if !m.enabled[ChannelDepth] || m.staleSize[ChannelDepth] {
		return 0
	}
	return m.depth.fill(buf)
}

func (m *MockLibrary) DisparitySize() (width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled[ChannelDisparity] {
		return 0, 0
	}
	return m.disparity.width, m.disparity.height
}

func (m *MockLibrary) Disparity(buf []float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("get_disparity")
	m.guard(ChannelDisparity)
	if !m.enabled[ChannelDisparity] || m.staleSize[ChannelDisparity] {
		return 0
	}
	return m.disparity.fill(buf)
}

func (m *MockLibrary) RectifiedInfo() (width, height, channels int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled[ChannelRectified] {
		return 0, 0, 0
	}
	return m.rectified.width, m.rectified.height, m.rectified.channels
}

func (m *MockLibrary) Rectified(buf []uint8) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("get_rectified")
	m.guard(ChannelRectified)
	if !m.enabled[ChannelRectified] || m.staleSize[ChannelRectified] {
		return 0
	}
	return m.rectified.fill(buf)
}

func (m *MockLibrary) PointsSize() (width, height, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled[ChannelPoints] {
		return 0, 0, 0
	}
	return m.points.width, m.points.height, len(m.points.data) / 3
}

// Points returns the number of points written, not floats.
func (m *MockLibrary) Points(buf []float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("get_points")
	m.guard(ChannelPoints)
	if !m.enabled[ChannelPoints] || m.staleSize[ChannelPoints] {
		return 0
	}
	n := m.points.fill(buf)
	if n <= 0 {
		return n
	}
	return n / 3
}

func (m *MockLibrary) IMUCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.imu) / IMUFields
}

// IMU copies the most recent samples, at most maxSamples, and empties the
// ring.
func (m *MockLibrary) IMU(buf []float64, maxSamples int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("get_imu")
	m.guard(ChannelIMU)
	if !m.enabled[ChannelIMU] || m.staleSize[ChannelIMU] {
		return 0
	}
	pending := len(m.imu) / IMUFields
	n := min(pending, maxSamples, len(buf)/IMUFields)
	if n <= 0 {
		return 0
	}
	copy(buf, m.imu[(pending-n)*IMUFields:])
	m.imu = m.imu[:0]
	return n
}

// DetectorBoxes returns the number of boxes written.
func (m *MockLibrary) DetectorBoxes(buf []int32, maxBoxes int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("get_detector_boxes")
	m.guard(ChannelDetector)
	if !m.enabled[ChannelDetector] || !m.boxes.ready || m.staleSize[ChannelDetector] {
		return 0
	}
	n := min(len(m.boxes.data)/BoxFields, maxBoxes, len(buf)/BoxFields)
	copy(buf, m.boxes.data[:n*BoxFields])
	m.boxes.ready = false
	return max(n, 0)
}

func (m *MockLibrary) DetectorImageInfo() (width, height, channels int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled[ChannelDetector] {
		return 0, 0, 0
	}
	return m.detImage.width, m.detImage.height, m.detImage.channels
}

// DetectorImage returns the last detector image on every call; the wrapper
// keeps no ready flag for it.
func (m *MockLibrary) DetectorImage(buf []uint8) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("get_detector_image")
	m.guard(ChannelDetectorImage)
	if !m.enabled[ChannelDetector] || len(m.detImage.data) == 0 {
		return 0
	}
	if len(buf) < len(m.detImage.data) {
		return FillTooSmall
	}
	return copy(buf, m.detImage.data)
}

func (m *MockLibrary) Calibration() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return "{}"
	}
	return m.calibText
}

func (m *MockLibrary) DeviceInfoDetailed() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return "{}"
	}
	return m.deviceText
}

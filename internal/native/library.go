// Package native is the boundary to the vendor stereo camera wrapper
// (libimsee_wrapper). The wrapper owns the capture threads and delivers each
// modality through internal callbacks; this package only exposes its C entry
// points as a Go interface so the camera runtime can be tested without
// hardware.
//
// The cgo binding is compiled with -tags=imsee. Without the tag, Open reports
// ErrNativeUnavailable and callers are expected to fall back to the
// SyntheticLibrary (dev mode) or a MockLibrary (tests).
package native

import "errors"

// ErrNativeUnavailable is returned by Open when the binary was built without
// the native wrapper.
var ErrNativeUnavailable = errors.New("native camera library not available: rebuild with -tags=imsee to link libimsee_wrapper")

// Resolution modes accepted by Init.
const (
	Resolution640x400  = 1
	Resolution1280x800 = 2
)

// Status codes returned by the wrapper's init and enable calls.
const (
	StatusOK = 0
	// StatusNoDevice is returned when the SDK handle is missing (enable
	// before init) or already present (init twice).
	StatusNoDevice = -1
	// StatusFailed is returned when the SDK refused the request.
	StatusFailed = -2
)

// FillTooSmall is returned by fill calls when the supplied buffer cannot
// hold the current frame.
const FillTooSmall = -1

// NotInitializedInfo is the module summary reported without a live device.
const NotInitializedInfo = "Camera not initialized"

// IMUFields is the number of float64 values per IMU sample:
// timestamp, accel x/y/z, gyro x/y/z.
const IMUFields = 7

// BoxFields is the number of int32 values per detector box:
// x, y, w, h, class id, score in thousandths.
const BoxFields = 6

// IMURingSize is the number of IMU samples the wrapper retains between polls.
const IMURingSize = 2000

// MaxDetectorBoxes is the number of boxes the wrapper retains per detection.
const MaxDetectorBoxes = 256

// Channel names used for per-channel configuration of the mock libraries.
const (
	ChannelImage         = "image"
	ChannelDepth         = "depth"
	ChannelDisparity     = "disparity"
	ChannelRectified     = "rectified"
	ChannelPoints        = "points"
	ChannelIMU           = "imu"
	ChannelDetector      = "detector"
	ChannelDetectorImage = "detector_image"
)

// Library mirrors the wrapper's C entry points. Size queries report the
// shape of the most recent frame the wrapper holds (zero before the first
// callback). Fill calls copy that frame into buf and return the number of
// elements written, 0 when there is nothing new, or FillTooSmall.
//
// Points returns a point count (three float32 per point); IMU and
// DetectorBoxes return record counts.
type Library interface {
	Init(resolution, fps int) int
	Release()
	IsInitialized() bool
	CallbackCount() int
	ModuleInfo() string

	ImageInfo() (width, height, channels int)
	Frame(buf []uint8) int

	EnableDepth(mode int) int
	DepthSize() (width, height int)
	Depth(buf []uint16) int

	EnableDisparity(mode int) int
	DisparitySize() (width, height int)
	Disparity(buf []float32) int

	EnableRectify() int
	RectifiedInfo() (width, height, channels int)
	Rectified(buf []uint8) int

	EnablePoints() int
	PointsSize() (width, height, count int)
	Points(buf []float32) int

	EnableIMU() int
	IMUCount() int
	IMU(buf []float64, maxSamples int) int

	EnableDetector() int
	DetectorBoxes(buf []int32, maxBoxes int) int
	DetectorImageInfo() (width, height, channels int)
	DetectorImage(buf []uint8) int

	Calibration() string
	DeviceInfoDetailed() string
}

//go:build imsee
// +build imsee

package native

/*
#cgo LDFLAGS: -limsee_wrapper

int  imsee_init(int resolution, int fps);
void imsee_release(void);
int  imsee_is_initialized(void);
int  imsee_get_callback_count(void);
const char* imsee_get_module_info(void);

void imsee_get_image_info(int* width, int* height, int* channels);
int  imsee_get_frame(unsigned char* buffer, int buffer_size);

int  imsee_enable_depth(int mode);
void imsee_get_depth_size(int* width, int* height);
int  imsee_get_depth(unsigned short* buffer, int buffer_size);

int  imsee_enable_disparity(int mode);
void imsee_get_disparity_size(int* width, int* height);
int  imsee_get_disparity(float* buffer, int buffer_size);

int  imsee_enable_rectify(void);
void imsee_get_rectified_info(int* width, int* height, int* channels);
int  imsee_get_rectified(unsigned char* buffer, int buffer_size);

int  imsee_enable_points(void);
void imsee_get_points_size(int* width, int* height, int* count);
int  imsee_get_points(float* buffer, int buffer_size);

int  imsee_enable_imu(void);
int  imsee_get_imu_count(void);
int  imsee_get_imu(double* buffer, int max_samples);

int  imsee_enable_detector(void);
int  imsee_get_detector_boxes(int* buffer, int max_boxes);
void imsee_get_detector_image_info(int* width, int* height, int* channels);
int  imsee_get_detector_image(unsigned char* buffer, int buffer_size);

const char* imsee_get_calibration(void);
const char* imsee_get_device_info_detailed(void);
*/
import "C"

import (
	"sync"
	"unsafe"
)

// cLibrary calls straight into libimsee_wrapper. Buffers are Go slices
// without Go pointers inside, so they can be passed to C for the duration
// of a call.
type cLibrary struct {
	// textMu serializes calls returning the wrapper's static text buffers.
	textMu sync.Mutex
}

// Open returns the linked native wrapper.
func Open() (Library, error) {
	return &cLibrary{}, nil
}

func (l *cLibrary) Init(resolution, fps int) int {
	return int(C.imsee_init(C.int(resolution), C.int(fps)))
}

func (l *cLibrary) Release() {
	C.imsee_release()
}

func (l *cLibrary) IsInitialized() bool {
	return C.imsee_is_initialized() == 1
}

func (l *cLibrary) CallbackCount() int {
	return int(C.imsee_get_callback_count())
}

func (l *cLibrary) ModuleInfo() string {
	l.textMu.Lock()
	defer l.textMu.Unlock()
	return C.GoString(C.imsee_get_module_info())
}

func (l *cLibrary) ImageInfo() (width, height, channels int) {
	var w, h, ch C.int
	C.imsee_get_image_info(&w, &h, &ch)
	return int(w), int(h), int(ch)
}

func (l *cLibrary) Frame(buf []uint8) int {
	if len(buf) == 0 {
		return 0
	}
	return int(C.imsee_get_frame((*C.uchar)(unsafe.Pointer(unsafe.SliceData(buf))), C.int(len(buf))))
}

func (l *cLibrary) EnableDepth(mode int) int {
	return int(C.imsee_enable_depth(C.int(mode)))
}

func (l *cLibrary) DepthSize() (width, height int) {
	var w, h C.int
	C.imsee_get_depth_size(&w, &h)
	return int(w), int(h)
}

func (l *cLibrary) Depth(buf []uint16) int {
	if len(buf) == 0 {
		return 0
	}
	return int(C.imsee_get_depth((*C.ushort)(unsafe.Pointer(unsafe.SliceData(buf))), C.int(len(buf))))
}

func (l *cLibrary) EnableDisparity(mode int) int {
	return int(C.imsee_enable_disparity(C.int(mode)))
}

func (l *cLibrary) DisparitySize() (width, height int) {
	var w, h C.int
	C.imsee_get_disparity_size(&w, &h)
	return int(w), int(h)
}

func (l *cLibrary) Disparity(buf []float32) int {
	if len(buf) == 0 {
		return 0
	}
	return int(C.imsee_get_disparity((*C.float)(unsafe.Pointer(unsafe.SliceData(buf))), C.int(len(buf))))
}

func (l *cLibrary) EnableRectify() int {
	return int(C.imsee_enable_rectify())
}

func (l *cLibrary) RectifiedInfo() (width, height, channels int) {
	var w, h, ch C.int
	C.imsee_get_rectified_info(&w, &h, &ch)
	return int(w), int(h), int(ch)
}

func (l *cLibrary) Rectified(buf []uint8) int {
	if len(buf) == 0 {
		return 0
	}
	return int(C.imsee_get_rectified((*C.uchar)(unsafe.Pointer(unsafe.SliceData(buf))), C.int(len(buf))))
}

func (l *cLibrary) EnablePoints() int {
	return int(C.imsee_enable_points())
}

func (l *cLibrary) PointsSize() (width, height, count int) {
	var w, h, n C.int
	C.imsee_get_points_size(&w, &h, &n)
	return int(w), int(h), int(n)
}

func (l *cLibrary) Points(buf []float32) int {
	if len(buf) == 0 {
		return 0
	}
	return int(C.imsee_get_points((*C.float)(unsafe.Pointer(unsafe.SliceData(buf))), C.int(len(buf))))
}

func (l *cLibrary) EnableIMU() int {
	return int(C.imsee_enable_imu())
}

func (l *cLibrary) IMUCount() int {
	return int(C.imsee_get_imu_count())
}

func (l *cLibrary) IMU(buf []float64, maxSamples int) int {
	if n := len(buf) / IMUFields; n < maxSamples {
		maxSamples = n
	}
	if maxSamples <= 0 {
		return 0
	}
	return int(C.imsee_get_imu((*C.double)(unsafe.Pointer(unsafe.SliceData(buf))), C.int(maxSamples)))
}

func (l *cLibrary) EnableDetector() int {
	return int(C.imsee_enable_detector())
}

func (l *cLibrary) DetectorBoxes(buf []int32, maxBoxes int) int {
	if n := len(buf) / BoxFields; n < maxBoxes {
		maxBoxes = n
	}
	if maxBoxes <= 0 {
		return 0
	}
	return int(C.imsee_get_detector_boxes((*C.int)(unsafe.Pointer(unsafe.SliceData(buf))), C.int(maxBoxes)))
}

func (l *cLibrary) DetectorImageInfo() (width, height, channels int) {
	var w, h, ch C.int
	C.imsee_get_detector_image_info(&w, &h, &ch)
	return int(w), int(h), int(ch)
}

func (l *cLibrary) DetectorImage(buf []uint8) int {
	if len(buf) == 0 {
		return 0
	}
	return int(C.imsee_get_detector_image((*C.uchar)(unsafe.Pointer(unsafe.SliceData(buf))), C.int(len(buf))))
}

func (l *cLibrary) Calibration() string {
	l.textMu.Lock()
	defer l.textMu.Unlock()
	return C.GoString(C.imsee_get_calibration())
}

func (l *cLibrary) DeviceInfoDetailed() string {
	l.textMu.Lock()
	defer l.textMu.Unlock()
	return C.GoString(C.imsee_get_device_info_detailed())
}

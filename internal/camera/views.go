package camera

import (
	"image"

	"github.com/banshee-data/depth.camera/internal/framebuf"
)

// Frame is a shaped, typed view of one channel poll. Data holds exactly
// product(Shape) elements in row-major order.
//
// Frames of the raw image channel alias the session's resident buffer and
// are valid until the next Image call; every other channel returns owned
// data.
type Frame[T framebuf.Element] struct {
	Shape []int
	Data  []T
}

// Len is the number of elements in the view.
func (f Frame[T]) Len() int {
	return len(f.Data)
}

// Height is the first dimension (rows or records).
func (f Frame[T]) Height() int {
	if len(f.Shape) == 0 {
		return 0
	}
	return f.Shape[0]
}

// Width is the second dimension (columns or fields).
func (f Frame[T]) Width() int {
	if len(f.Shape) < 2 {
		return 0
	}
	return f.Shape[1]
}

// Channels is the third dimension, 1 for two dimensional views.
func (f Frame[T]) Channels() int {
	if len(f.Shape) < 3 {
		return 1
	}
	return f.Shape[2]
}

// Row returns the elements of row (or record) i.
func (f Frame[T]) Row(i int) []T {
	stride := f.Width() * f.Channels()
	return f.Data[i*stride : (i+1)*stride]
}

// At returns the element at row y, column x of a single channel view.
func (f Frame[T]) At(y, x int) T {
	return f.Data[y*f.Width()*f.Channels()+x*f.Channels()]
}

// Clone returns a copy that does not share memory with f.
func (f Frame[T]) Clone() Frame[T] {
	return Frame[T]{
		Shape: append([]int(nil), f.Shape...),
		Data:  append([]T(nil), f.Data...),
	}
}

// Gray copies a single channel 8-bit view into an image.Gray. Multi channel
// views keep their first channel.
func Gray(f Frame[uint8]) *image.Gray {
	h, w, ch := f.Height(), f.Width(), f.Channels()
	img := image.NewGray(image.Rect(0, 0, w, h))
	if ch == 1 {
		copy(img.Pix, f.Data)
		return img
	}
	for i := 0; i < w*h; i++ {
		img.Pix[i] = f.Data[i*ch]
	}
	return img
}

// IMUSample is one decoded IMU record.
type IMUSample struct {
	Timestamp float64    `json:"timestamp"`
	Accel     [3]float64 `json:"accel"`
	Gyro      [3]float64 `json:"gyro"`
}

// IMUSamples decodes an N x 7 IMU view.
func IMUSamples(f Frame[float64]) []IMUSample {
	out := make([]IMUSample, f.Height())
	for i := range out {
		r := f.Row(i)
		out[i] = IMUSample{
			Timestamp: r[0],
			Accel:     [3]float64{r[1], r[2], r[3]},
			Gyro:      [3]float64{r[4], r[5], r[6]},
		}
	}
	return out
}

// Point is one point cloud sample in metres.
type Point struct {
	X, Y, Z float32
}

// Points decodes an N x 3 point view.
func Points(f Frame[float32]) []Point {
	out := make([]Point, f.Height())
	for i := range out {
		r := f.Row(i)
		out[i] = Point{r[0], r[1], r[2]}
	}
	return out
}

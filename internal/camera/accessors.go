package camera

import (
	"sync"

	"github.com/banshee-data/depth.camera/internal/framebuf"
	"github.com/banshee-data/depth.camera/internal/monitoring"
)

// ChannelStats are the per-channel poll counters of a session.
type ChannelStats struct {
	Polls  uint64 `json:"polls"`
	Frames uint64 `json:"frames"`
	Absent uint64 `json:"absent"`
	Faults uint64 `json:"faults"`
	Allocs uint64 `json:"allocs"`
}

// accessor owns one channel's resident buffer. Its mutex covers a whole
// ensure, fill and copy step so concurrent polls of the same channel
// serialise while other channels proceed.
type accessor[T framebuf.Element] struct {
	ch   Channel
	desc Descriptor

	mu    sync.Mutex
	buf   framebuf.Buffer[T]
	stats ChannelStats
}

func newAccessor[T framebuf.Element](ch Channel) *accessor[T] {
	return &accessor[T]{ch: ch, desc: ch.Descriptor()}
}

// pollGrid reads an image-like channel. size reports width, height and
// channels (channels is ignored for ShapeHW).
func (a *accessor[T]) pollGrid(size func() (int, int, int), fill func([]T) int) (f Frame[T], ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.settle(&f, &ok)

	w, h, c := size()
	shape, n := a.gridShape(w, h, c)
	if n <= 0 {
		return Frame[T]{}, false
	}
	buf := a.ensure(n)
	got := fill(buf)
	if got <= 0 {
		return Frame[T]{}, false
	}
	if got != n {
		// The producer was reconfigured between size query and fill.
		// Accept the frame only if the current shape accounts for it.
		w, h, c = size()
		shape, n = a.gridShape(w, h, c)
		if n != got {
			return Frame[T]{}, false
		}
	}
	return a.view(shape, buf[:got]), true
}

func (a *accessor[T]) gridShape(w, h, c int) ([]int, int) {
	if w <= 0 || h <= 0 {
		return nil, 0
	}
	switch a.desc.Shape {
	case ShapeHWC:
		c = max(c, 1)
		return []int{h, w, c}, w * h * c
	case ShapeImage:
		if c > 1 {
			return []int{h, w, c}, w * h * c
		}
	}
	return []int{h, w}, w * h
}

// pollPoints reads the point cloud. count is the point count reported by
// the size query; fill returns points written.
func (a *accessor[T]) pollPoints(count func() int, fill func([]T) int) (f Frame[T], ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.settle(&f, &ok)

	n := count()
	if n <= 0 {
		return Frame[T]{}, false
	}
	fields := a.desc.Fields
	buf := a.ensure(n * fields)
	got := fill(buf)
	if got <= 0 {
		return Frame[T]{}, false
	}
	got = min(got, n)
	return a.view([]int{got, fields}, buf[:got*fields]), true
}

// pollRecords reads a capped record channel (IMU, detector boxes). fill
// receives the buffer and the record cap and returns records written.
func (a *accessor[T]) pollRecords(limit int, fill func([]T, int) int) (f Frame[T], ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.settle(&f, &ok)

	if limit <= 0 {
		return Frame[T]{}, false
	}
	fields := a.desc.Fields
	buf := a.ensure(limit * fields)
	got := fill(buf, limit)
	if got <= 0 {
		return Frame[T]{}, false
	}
	got = min(got, limit)
	return a.view([]int{got, fields}, buf[:got*fields]), true
}

func (a *accessor[T]) ensure(n int) []T {
	before := a.buf.Allocs()
	buf := a.buf.Ensure(n)
	if a.buf.Allocs() != before {
		a.stats.Allocs++
		monitoring.RecordAllocation(a.desc.Name)
	}
	return buf
}

func (a *accessor[T]) view(shape []int, data []T) Frame[T] {
	if a.desc.CopyOut {
		data = append([]T(nil), data...)
	}
	return Frame[T]{Shape: shape, Data: data}
}

// settle runs deferred after every poll. A panic raised by the native layer
// becomes an absent result so it never reaches the polling loop.
func (a *accessor[T]) settle(f *Frame[T], ok *bool) {
	a.stats.Polls++
	if r := recover(); r != nil {
		*f, *ok = Frame[T]{}, false
		a.stats.Faults++
		monitoring.Logf("camera: %s fill fault recovered: %v", a.desc.Name, r)
		monitoring.RecordPoll(a.desc.Name, monitoring.OutcomeFault)
		return
	}
	if *ok {
		a.stats.Frames++
		monitoring.RecordPoll(a.desc.Name, monitoring.OutcomeFrame)
		return
	}
	a.stats.Absent++
	monitoring.RecordPoll(a.desc.Name, monitoring.OutcomeAbsent)
}

func (a *accessor[T]) snapshot() ChannelStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// reset drops the resident buffer; the counters are kept.
func (a *accessor[T]) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.Reset()
}

// allocs reports buffer allocations, for tests and stats.
func (a *accessor[T]) allocs() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Allocs()
}

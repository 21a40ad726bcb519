// Package framebuf provides the resident buffers that camera channel accessors
// hand to the native library for filling.
//
// A Buffer is sized in elements, not bytes. It is reused verbatim while the
// required element count stays the same and replaced with a fresh, zeroed
// region whenever the count changes in either direction, so a shrinking frame
// never exposes tail data left over from a larger one.
package framebuf

// Element is the set of element types the native fill calls write.
type Element interface {
	~uint8 | ~uint16 | ~int32 | ~float32 | ~float64
}

// Buffer is a reusable region of T owned by a single channel accessor.
// It is not safe for concurrent use; the owner serializes access.
type Buffer[T Element] struct {
	data   []T
	count  int
	allocs uint64
}

// Ensure returns a region of exactly n elements. The previous region is
// returned when n matches the last allocated count; otherwise a new region
// replaces it. n <= 0 yields nil and leaves the buffer untouched.
func (b *Buffer[T]) Ensure(n int) []T {
	if n <= 0 {
		return nil
	}
	if b.data != nil && b.count == n {
		return b.data
	}
	b.data = make([]T, n)
	b.count = n
	b.allocs++
	return b.data
}

// Len is the element count the current region was sized for.
func (b *Buffer[T]) Len() int {
	return b.count
}

// Allocs reports how many times Ensure had to allocate.
func (b *Buffer[T]) Allocs() uint64 {
	return b.allocs
}

// Reset drops the region. The allocation count is kept.
func (b *Buffer[T]) Reset() {
	b.data = nil
	b.count = 0
}

//go:build !imsee
// +build !imsee

package native

// Open is a stub when the native wrapper is not linked.
// Build with -tags=imsee to enable the cgo binding.
func Open() (Library, error) {
	return nil, ErrNativeUnavailable
}

// Package testutil provides shared test helpers and camera fixtures.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/banshee-data/depth.camera/internal/monitoring"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// MuteLogs discards package logging until the test ends.
func MuteLogs(t testing.TB) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
}

// CaptureLogs records formatted log lines until the test ends. Read the
// result only after the code under test has stopped logging.
func CaptureLogs(t testing.TB) *[]string {
	t.Helper()
	var mu sync.Mutex
	lines := &[]string{}
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		*lines = append(*lines, fmt.Sprintf(format, args...))
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return lines
}

// DecodeJSON decodes a response body into v, failing the test on error.
func DecodeJSON(t testing.TB, r io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

// DepthRamp returns a w*h depth plane rising left to right from near to
// far millimetres. Column 0 is a hole (zero).
func DepthRamp(w, h int, near, far uint16) []uint16 {
	out := make([]uint16, w*h)
	span := int(far) - int(near)
	for y := 0; y < h; y++ {
		for x := 1; x < w; x++ {
			v := int(near)
			if w > 2 {
				v += span * (x - 1) / (w - 2)
			}
			out[y*w+x] = uint16(v)
		}
	}
	return out
}

// Constant returns n copies of v.
func Constant[T any](n int, v T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// GrayGradient returns a w*h diagonal 8-bit gradient.
func GrayGradient(w, h int) []uint8 {
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = uint8((x + y) * 255 / max(1, w+h-2))
		}
	}
	return out
}

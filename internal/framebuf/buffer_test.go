package framebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_EnsureReusesSameCount(t *testing.T) {
	var b Buffer[uint16]

	first := b.Ensure(16)
	require.Len(t, first, 16)
	first[0] = 42

	second := b.Ensure(16)
	require.Len(t, second, 16)
	assert.Equal(t, uint16(42), second[0], "same region should be handed back")
	assert.Same(t, &first[0], &second[0])
	assert.Equal(t, uint64(1), b.Allocs())
}

func TestBuffer_EnsureReallocatesOnChange(t *testing.T) {
	tests := []struct {
		name string
		from int
		to   int
	}{
		{"grow", 8, 32},
		{"shrink", 32, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Buffer[float32]
			old := b.Ensure(tt.from)
			for i := range old {
				old[i] = 7
			}

			next := b.Ensure(tt.to)
			require.Len(t, next, tt.to)
			assert.Equal(t, uint64(2), b.Allocs())
			assert.Equal(t, tt.to, b.Len())
			for i, v := range next {
				if v != 0 {
					t.Fatalf("element %d = %v, want zeroed region", i, v)
				}
			}
		})
	}
}

func TestBuffer_EnsureNonPositive(t *testing.T) {
	var b Buffer[uint8]
	assert.Nil(t, b.Ensure(0))
	assert.Nil(t, b.Ensure(-4))
	assert.Equal(t, uint64(0), b.Allocs())
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_Reset(t *testing.T) {
	var b Buffer[int32]
	b.Ensure(6)
	b.Reset()
	assert.Equal(t, 0, b.Len())

	// A reset buffer allocates again even for the same count.
	b.Ensure(6)
	assert.Equal(t, uint64(2), b.Allocs())
}

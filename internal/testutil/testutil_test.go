package testutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depth.camera/internal/monitoring"
)

func TestAssertStatusCode_Matching(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	assert.False(t, fakeT.Failed())
}

func TestCaptureLogs(t *testing.T) {
	lines := CaptureLogs(t)
	monitoring.Logf("camera %s", "up")
	require.Len(t, *lines, 1)
	assert.Equal(t, "camera up", (*lines)[0])
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Running bool `json:"running"`
	}
	DecodeJSON(t, strings.NewReader(`{"running":true}`), &v)
	assert.True(t, v.Running)
}

func TestDepthRamp(t *testing.T) {
	d := DepthRamp(5, 2, 1000, 4000)
	require.Len(t, d, 10)
	assert.Equal(t, []uint16{0, 1000, 2000, 3000, 4000}, d[:5])
	assert.Equal(t, d[:5], d[5:])
}

func TestGrayGradient(t *testing.T) {
	g := GrayGradient(4, 4)
	assert.Equal(t, uint8(0), g[0])
	assert.Equal(t, uint8(255), g[15])
	assert.Equal(t, []int{7, 7, 7}, []int{len(Constant(7, 1)), len(Constant(7, "a")), len(Constant(7, 0.5))})
}

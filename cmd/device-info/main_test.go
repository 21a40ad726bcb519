package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/depth.camera/internal/camera"
)

func TestPrintInfo(t *testing.T) {
	var buf bytes.Buffer
	printInfo(&buf, camera.DecodeMetadata(`{"firmware":"2.0.1","id":"A1"}`))
	out := buf.String()
	assert.Contains(t, out, "  firmware: 2.0.1\n  id: A1\n")

	buf.Reset()
	printInfo(&buf, camera.DecodeMetadata("{}"))
	assert.Contains(t, buf.String(), "unavailable")

	buf.Reset()
	printInfo(&buf, camera.DecodeMetadata("oops"))
	assert.Contains(t, buf.String(), "unavailable:")
}

func TestPrintCalibration(t *testing.T) {
	var buf bytes.Buffer
	printCalibration(&buf, camera.DecodeCalibration(`{
	  "baseline": 0.12,
	  "left":  {"w": 640, "h": 400, "fx": 390.1, "fy": 391.2, "cx": 321.5, "cy": 199.5,
	            "P": [390.1, 0, 321.5, 0, 0, 391.2, 199.5, 0, 0, 0, 1, 0]},
	  "right": {"w": 640, "h": 400, "fx": 389.9, "fy": 390.8, "cx": 318.2, "cy": 201.0}
	}`))
	out := buf.String()
	assert.Contains(t, out, "baseline: 0.12 m")
	assert.Contains(t, out, "[LEFT camera]")
	assert.Contains(t, out, "focal: fx=390.1000, fy=391.2000")
	assert.Contains(t, out, "[  390.1000,     0.0000,   321.5000,     0.0000]")
	assert.NotContains(t, out, "warning")

	buf.Reset()
	printCalibration(&buf, camera.DecodeCalibration("{}"))
	assert.Contains(t, buf.String(), "unavailable")
}

package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveExportPath(t *testing.T) {
	base := t.TempDir()
	exportDir := filepath.Join(base, "exports")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(exportDir, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(exportDir, "link")))

	root, err := filepath.EvalSymlinks(exportDir)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"relative file", "imu.csv", filepath.Join(root, "imu.csv"), false},
		{"nested new dir", "runs/2026/imu.csv", filepath.Join(root, "runs", "2026", "imu.csv"), false},
		{"absolute inside", filepath.Join(exportDir, "a.csv"), filepath.Join(root, "a.csv"), false},
		{"dot dot", "../escape.csv", "", true},
		{"absolute outside", filepath.Join(outside, "x.csv"), "", true},
		{"through symlink", "link/x.csv", "", true},
		{"export dir itself", ".", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveExportPath(tt.path, exportDir)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveExportPath_ErrorKind(t *testing.T) {
	_, err := ResolveExportPath("../../etc/passwd", t.TempDir())
	assert.ErrorIs(t, err, ErrOutsideExportDir)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"imu_2026-10-19.csv":  "imu_2026-10-19.csv",
		"../../etc/passwd":    "etc_passwd",
		"SN 0001/left cam":    "SN_0001_left_cam",
		"":                    "unknown",
		"___":                 "unknown",
		"héllo wörld":         "h_llo_w_rld",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

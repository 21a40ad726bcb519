// Package version carries build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Info is the build metadata as served by /api/version.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
	Native    bool   `json:"native"`
}

// Current returns the build metadata. native reports whether the binary
// links the camera wrapper.
func Current(native bool) Info {
	return Info{Version: Version, GitSHA: GitSHA, BuildTime: BuildTime, Native: native}
}

// String formats the metadata for -version output.
func (i Info) String() string {
	linked := "synthetic only"
	if i.Native {
		linked = "native camera"
	}
	return fmt.Sprintf("%s (%s, built %s, %s)", i.Version, i.GitSHA, i.BuildTime, linked)
}

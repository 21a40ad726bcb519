package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical camera defaults file.
const DefaultConfigPath = "config/camera.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// CameraConfig is the runtime configuration of the camera service. Every
// field is optional; the Get* methods supply defaults for omitted fields, so
// partial files are safe. The same keys are accepted in JSON and YAML.
type CameraConfig struct {
	// Device
	Resolution    *int `json:"resolution,omitempty" yaml:"resolution,omitempty"` // 1 = 640x400, 2 = 1280x800
	FPS           *int `json:"fps,omitempty" yaml:"fps,omitempty"`
	DepthMode     *int `json:"depth_mode,omitempty" yaml:"depth_mode,omitempty"`
	DisparityMode *int `json:"disparity_mode,omitempty" yaml:"disparity_mode,omitempty"`

	// Channels enabled at start
	EnableDepth     *bool `json:"enable_depth,omitempty" yaml:"enable_depth,omitempty"`
	EnableDisparity *bool `json:"enable_disparity,omitempty" yaml:"enable_disparity,omitempty"`
	EnableRectify   *bool `json:"enable_rectify,omitempty" yaml:"enable_rectify,omitempty"`
	EnablePoints    *bool `json:"enable_points,omitempty" yaml:"enable_points,omitempty"`
	EnableIMU       *bool `json:"enable_imu,omitempty" yaml:"enable_imu,omitempty"`
	EnableDetector  *bool `json:"enable_detector,omitempty" yaml:"enable_detector,omitempty"`

	// Poll caps
	IMUMaxSamples   *int    `json:"imu_max_samples,omitempty" yaml:"imu_max_samples,omitempty"`
	MaxBoxes        *int    `json:"max_boxes,omitempty" yaml:"max_boxes,omitempty"`
	IMUPollInterval *string `json:"imu_poll_interval,omitempty" yaml:"imu_poll_interval,omitempty"` // duration string like "50ms"

	// Streaming
	JPEGQuality     *int     `json:"jpeg_quality,omitempty" yaml:"jpeg_quality,omitempty"`
	StreamFPS       *float64 `json:"stream_fps,omitempty" yaml:"stream_fps,omitempty"`
	OverlayAlpha    *float64 `json:"overlay_alpha,omitempty" yaml:"overlay_alpha,omitempty"`
	DepthMaxRangeMM *int     `json:"depth_max_range_mm,omitempty" yaml:"depth_max_range_mm,omitempty"`

	// Export
	ExportDir *string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
}

func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyCameraConfig returns a CameraConfig with all fields unset.
func EmptyCameraConfig() *CameraConfig {
	return &CameraConfig{}
}

// DefaultCameraConfig returns a config with every field set to its default.
func DefaultCameraConfig() *CameraConfig {
	c := EmptyCameraConfig()
	return &CameraConfig{
		Resolution:      ptrInt(c.GetResolution()),
		FPS:             ptrInt(c.GetFPS()),
		DepthMode:       ptrInt(c.GetDepthMode()),
		DisparityMode:   ptrInt(c.GetDisparityMode()),
		EnableDepth:     ptrBool(c.GetEnableDepth()),
		EnableDisparity: ptrBool(c.GetEnableDisparity()),
		EnableRectify:   ptrBool(c.GetEnableRectify()),
		EnablePoints:    ptrBool(c.GetEnablePoints()),
		EnableIMU:       ptrBool(c.GetEnableIMU()),
		EnableDetector:  ptrBool(c.GetEnableDetector()),
		IMUMaxSamples:   ptrInt(c.GetIMUMaxSamples()),
		MaxBoxes:        ptrInt(c.GetMaxBoxes()),
		IMUPollInterval: ptrString(c.GetIMUPollInterval().String()),
		JPEGQuality:     ptrInt(c.GetJPEGQuality()),
		StreamFPS:       ptrFloat64(c.GetStreamFPS()),
		OverlayAlpha:    ptrFloat64(c.GetOverlayAlpha()),
		DepthMaxRangeMM: ptrInt(c.GetDepthMaxRangeMM()),
		ExportDir:       ptrString(c.GetExportDir()),
	}
}

// LoadCameraConfig loads a CameraConfig from a .json, .yaml or .yml file
// no larger than 1MB.
func LoadCameraConfig(path string) (*CameraConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCameraConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// current directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *CameraConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ and deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadCameraConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *CameraConfig) Validate() error {
	if c.Resolution != nil && *c.Resolution != 1 && *c.Resolution != 2 {
		return fmt.Errorf("resolution must be 1 (640x400) or 2 (1280x800), got %d", *c.Resolution)
	}
	if c.FPS != nil && (*c.FPS < 1 || *c.FPS > 60) {
		return fmt.Errorf("fps must be between 1 and 60, got %d", *c.FPS)
	}
	if c.DepthMode != nil && (*c.DepthMode < 0 || *c.DepthMode > 1) {
		return fmt.Errorf("depth_mode must be 0 or 1, got %d", *c.DepthMode)
	}
	if c.DisparityMode != nil && (*c.DisparityMode < 0 || *c.DisparityMode > 3) {
		return fmt.Errorf("disparity_mode must be between 0 and 3, got %d", *c.DisparityMode)
	}
	if c.IMUMaxSamples != nil && (*c.IMUMaxSamples < 1 || *c.IMUMaxSamples > 2000) {
		return fmt.Errorf("imu_max_samples must be between 1 and 2000, got %d", *c.IMUMaxSamples)
	}
	if c.MaxBoxes != nil && (*c.MaxBoxes < 1 || *c.MaxBoxes > 256) {
		return fmt.Errorf("max_boxes must be between 1 and 256, got %d", *c.MaxBoxes)
	}
	if c.IMUPollInterval != nil && *c.IMUPollInterval != "" {
		d, err := time.ParseDuration(*c.IMUPollInterval)
		if err != nil {
			return fmt.Errorf("invalid imu_poll_interval '%s': %w", *c.IMUPollInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("imu_poll_interval must be positive, got %s", d)
		}
	}
	if c.JPEGQuality != nil && (*c.JPEGQuality < 1 || *c.JPEGQuality > 100) {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", *c.JPEGQuality)
	}
	if c.StreamFPS != nil && (*c.StreamFPS <= 0 || *c.StreamFPS > 60) {
		return fmt.Errorf("stream_fps must be in (0, 60], got %f", *c.StreamFPS)
	}
	if c.OverlayAlpha != nil && (*c.OverlayAlpha < 0 || *c.OverlayAlpha > 1) {
		return fmt.Errorf("overlay_alpha must be between 0 and 1, got %f", *c.OverlayAlpha)
	}
	if c.DepthMaxRangeMM != nil && (*c.DepthMaxRangeMM < 1 || *c.DepthMaxRangeMM > 65535) {
		return fmt.Errorf("depth_max_range_mm must be between 1 and 65535, got %d", *c.DepthMaxRangeMM)
	}
	return nil
}

// GetResolution returns the resolution mode or the default (640x400).
func (c *CameraConfig) GetResolution() int {
	if c.Resolution == nil {
		return 1
	}
	return *c.Resolution
}

// GetFPS returns the capture rate or the default.
func (c *CameraConfig) GetFPS() int {
	if c.FPS == nil {
		return 25
	}
	return *c.FPS
}

func (c *CameraConfig) GetDepthMode() int {
	if c.DepthMode == nil {
		return 0
	}
	return *c.DepthMode
}

func (c *CameraConfig) GetDisparityMode() int {
	if c.DisparityMode == nil {
		return 0
	}
	return *c.DisparityMode
}

// GetEnableDepth defaults to true; the overlay stream needs depth.
func (c *CameraConfig) GetEnableDepth() bool {
	if c.EnableDepth == nil {
		return true
	}
	return *c.EnableDepth
}

func (c *CameraConfig) GetEnableDisparity() bool {
	return c.EnableDisparity != nil && *c.EnableDisparity
}

func (c *CameraConfig) GetEnableRectify() bool {
	return c.EnableRectify != nil && *c.EnableRectify
}

func (c *CameraConfig) GetEnablePoints() bool {
	return c.EnablePoints != nil && *c.EnablePoints
}

func (c *CameraConfig) GetEnableIMU() bool {
	return c.EnableIMU != nil && *c.EnableIMU
}

func (c *CameraConfig) GetEnableDetector() bool {
	return c.EnableDetector != nil && *c.EnableDetector
}

// GetIMUMaxSamples returns the per-poll IMU cap or the default.
func (c *CameraConfig) GetIMUMaxSamples() int {
	if c.IMUMaxSamples == nil {
		return 2000
	}
	return *c.IMUMaxSamples
}

// GetMaxBoxes returns the per-poll detection cap or the default.
func (c *CameraConfig) GetMaxBoxes() int {
	if c.MaxBoxes == nil {
		return 100
	}
	return *c.MaxBoxes
}

// GetIMUPollInterval parses and returns the IMU poll interval.
func (c *CameraConfig) GetIMUPollInterval() time.Duration {
	if c.IMUPollInterval == nil || *c.IMUPollInterval == "" {
		return 50 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.IMUPollInterval)
	if err != nil || d <= 0 {
		return 50 * time.Millisecond // default on parse error
	}
	return d
}

func (c *CameraConfig) GetJPEGQuality() int {
	if c.JPEGQuality == nil {
		return 80
	}
	return *c.JPEGQuality
}

func (c *CameraConfig) GetStreamFPS() float64 {
	if c.StreamFPS == nil {
		return 25
	}
	return *c.StreamFPS
}

func (c *CameraConfig) GetOverlayAlpha() float64 {
	if c.OverlayAlpha == nil {
		return 0.5
	}
	return *c.OverlayAlpha
}

// GetDepthMaxRangeMM returns the far clamp used when colourising depth.
func (c *CameraConfig) GetDepthMaxRangeMM() int {
	if c.DepthMaxRangeMM == nil {
		return 4000
	}
	return *c.DepthMaxRangeMM
}

// GetExportDir returns the directory IMU CSV exports must stay within.
func (c *CameraConfig) GetExportDir() string {
	if c.ExportDir == nil || *c.ExportDir == "" {
		return "."
	}
	return *c.ExportDir
}

package camera

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmespath/go-jmespath"
	"github.com/xeipuuv/gojsonschema"
)

// Metadata is a decoded native text payload. Fields is never nil: a payload
// that fails to decode yields an empty mapping and a non-nil Err, and
// callers treat an empty mapping as "unavailable".
type Metadata struct {
	Fields map[string]any
	Err    error
}

// DecodeMetadata parses a JSON object payload.
func DecodeMetadata(text string) Metadata {
	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return Metadata{Fields: map[string]any{}, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	if fields == nil {
		// "null" decodes without error.
		fields = map[string]any{}
	}
	return Metadata{Fields: fields}
}

// Empty reports whether the payload carried no fields.
func (m Metadata) Empty() bool {
	return len(m.Fields) == 0
}

// Lookup evaluates a JMESPath expression such as "left.fx" against the
// fields. A malformed expression or a missing field yields nil, false.
func (m Metadata) Lookup(path string) (any, bool) {
	v, err := jmespath.Search(path, m.Fields)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// Float returns the number at path, or def when absent or not a number.
func (m Metadata) Float(path string, def float64) float64 {
	v, ok := m.Lookup(path)
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return f
}

// Int returns the number at path truncated to an int, or def.
func (m Metadata) Int(path string, def int) int {
	v, ok := m.Lookup(path)
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return int(f)
}

// String returns the string at path, or def.
func (m Metadata) String(path string, def string) string {
	v, ok := m.Lookup(path)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

const calibrationSchema = `{
  "type": "object",
  "required": ["baseline", "left", "right"],
  "properties": {
    "baseline": {"type": "number"},
    "left":  {"$ref": "#/definitions/side"},
    "right": {"$ref": "#/definitions/side"}
  },
  "definitions": {
    "side": {
      "type": "object",
      "required": ["fx", "fy", "cx", "cy"],
      "properties": {
        "fx": {"type": "number"},
        "fy": {"type": "number"},
        "cx": {"type": "number"},
        "cy": {"type": "number"},
        "P":  {"type": "array", "items": {"type": "number"}, "maxItems": 12}
      }
    }
  }
}`

var (
	calibrationSchemaOnce sync.Once
	calibrationSchemaC    *gojsonschema.Schema
	calibrationSchemaErr  error
)

func compiledCalibrationSchema() (*gojsonschema.Schema, error) {
	calibrationSchemaOnce.Do(func() {
		calibrationSchemaC, calibrationSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(calibrationSchema))
	})
	return calibrationSchemaC, calibrationSchemaErr
}

// Calibration is the decoded stereo calibration payload. Problems lists the
// guaranteed fields that are missing or mistyped; the remaining fields stay
// readable either way.
type Calibration struct {
	Metadata
	Problems []string
}

// DecodeCalibration parses and validates a calibration payload.
func DecodeCalibration(text string) Calibration {
	c := Calibration{Metadata: DecodeMetadata(text)}
	if c.Err != nil {
		c.Problems = []string{c.Err.Error()}
		return c
	}
	schema, err := compiledCalibrationSchema()
	if err != nil {
		c.Problems = []string{err.Error()}
		return c
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(c.Fields))
	if err != nil {
		c.Problems = []string{err.Error()}
		return c
	}
	for _, desc := range result.Errors() {
		c.Problems = append(c.Problems, desc.String())
	}
	return c
}

// Complete reports whether baseline and both sides' fx, fy, cx and cy are
// present.
func (c Calibration) Complete() bool {
	return c.Err == nil && len(c.Problems) == 0
}

// Intrinsics are the per-camera parameters. Missing values are zero, and
// P is nil when the projection matrix is missing or malformed.
type Intrinsics struct {
	Width  int       `json:"w"`
	Height int       `json:"h"`
	FX     float64   `json:"fx"`
	FY     float64   `json:"fy"`
	CX     float64   `json:"cx"`
	CY     float64   `json:"cy"`
	K1     float64   `json:"k1"`
	K2     float64   `json:"k2"`
	T1     float64   `json:"t1"`
	T2     float64   `json:"t2"`
	P      []float64 `json:"P,omitempty"`
}

// StereoCalibration is the typed view of a calibration payload.
type StereoCalibration struct {
	Baseline float64    `json:"baseline"`
	Left     Intrinsics `json:"left"`
	Right    Intrinsics `json:"right"`
}

// Stereo returns the typed view, with zero values for anything missing.
func (c Calibration) Stereo() StereoCalibration {
	return StereoCalibration{
		Baseline: c.Float("baseline", 0),
		Left:     c.intrinsics("left"),
		Right:    c.intrinsics("right"),
	}
}

func (c Calibration) intrinsics(side string) Intrinsics {
	in := Intrinsics{
		Width:  c.Int(side+".w", 0),
		Height: c.Int(side+".h", 0),
		FX:     c.Float(side+".fx", 0),
		FY:     c.Float(side+".fy", 0),
		CX:     c.Float(side+".cx", 0),
		CY:     c.Float(side+".cy", 0),
		K1:     c.Float(side+".k1", 0),
		K2:     c.Float(side+".k2", 0),
		T1:     c.Float(side+".t1", 0),
		T2:     c.Float(side+".t2", 0),
	}
	if v, ok := c.Lookup(side + ".P"); ok {
		if raw, ok := v.([]any); ok && len(raw) == 12 {
			p := make([]float64, 0, 12)
			for _, e := range raw {
				f, ok := e.(float64)
				if !ok {
					return in
				}
				p = append(p, f)
			}
			in.P = p
		}
	}
	return in
}

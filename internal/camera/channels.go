package camera

import "github.com/banshee-data/depth.camera/internal/native"

// Channel identifies one data modality of the camera.
type Channel int

const (
	ChannelImage Channel = iota
	ChannelDepth
	ChannelDisparity
	ChannelRectified
	ChannelPoints
	ChannelIMU
	ChannelDetections
	ChannelDetectorImage
)

// Channels lists every channel in descriptor order.
var Channels = []Channel{
	ChannelImage,
	ChannelDepth,
	ChannelDisparity,
	ChannelRectified,
	ChannelPoints,
	ChannelIMU,
	ChannelDetections,
	ChannelDetectorImage,
}

func (c Channel) String() string {
	if d, ok := descriptors[c]; ok {
		return d.Name
	}
	return "unknown"
}

// Descriptor returns the static metadata of c.
func (c Channel) Descriptor() Descriptor {
	return descriptors[c]
}

// ElementKind is the element type a channel's native fill call writes.
type ElementKind int

const (
	Uint8 ElementKind = iota
	Uint16
	Int32
	Float32
	Float64
)

func (k ElementKind) String() string {
	switch k {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return "unknown"
}

// Size is the element size in bytes.
func (k ElementKind) Size() int {
	switch k {
	case Uint8:
		return 1
	case Uint16:
		return 2
	case Int32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// ShapeRule describes how a channel's view shape is derived.
type ShapeRule int

const (
	ShapeHW     ShapeRule = iota // height x width
	ShapeHWC                     // height x width x channels
	ShapeImage                   // height x width, x channels only when channels > 1
	ShapePoints                  // N x 3
	ShapeIMU                     // N x 7
	ShapeBoxes                   // N x 6
)

// Descriptor is the immutable per-channel metadata.
type Descriptor struct {
	Name string
	Kind ElementKind
	// Shape is the rule used to shape a filled view.
	Shape ShapeRule
	// Fields is the per-record width for record channels.
	Fields int
	// CopyOut reports whether views are copied out of the resident buffer.
	CopyOut bool
	// Native is the channel name used by the native layer.
	Native string
}

var descriptors = map[Channel]Descriptor{
	ChannelImage:         {Name: "image", Kind: Uint8, Shape: ShapeImage, Native: native.ChannelImage},
	ChannelDepth:         {Name: "depth", Kind: Uint16, Shape: ShapeHW, CopyOut: true, Native: native.ChannelDepth},
	ChannelDisparity:     {Name: "disparity", Kind: Float32, Shape: ShapeHW, CopyOut: true, Native: native.ChannelDisparity},
	ChannelRectified:     {Name: "rectified", Kind: Uint8, Shape: ShapeHWC, CopyOut: true, Native: native.ChannelRectified},
	ChannelPoints:        {Name: "points", Kind: Float32, Shape: ShapePoints, Fields: 3, CopyOut: true, Native: native.ChannelPoints},
	ChannelIMU:           {Name: "imu", Kind: Float64, Shape: ShapeIMU, Fields: native.IMUFields, CopyOut: true, Native: native.ChannelIMU},
	ChannelDetections:    {Name: "detections", Kind: Int32, Shape: ShapeBoxes, Fields: native.BoxFields, CopyOut: true, Native: native.ChannelDetector},
	ChannelDetectorImage: {Name: "detector_image", Kind: Uint8, Shape: ShapeImage, CopyOut: true, Native: native.ChannelDetectorImage},
}

// DepthMode selects the depth processor variant.
type DepthMode int

const (
	DepthDefault DepthMode = 0
	// DepthHighAccuracy enables high accuracy matching with LR check.
	DepthHighAccuracy DepthMode = 1
)

// DisparityMode selects the disparity processor variant.
type DisparityMode int

const (
	DisparityDefault      DisparityMode = 0
	DisparityHighAccuracy DisparityMode = 1
	DisparityLRCheck      DisparityMode = 2
	DisparityBoth         DisparityMode = 3
)

// Class names reported by the on-device detector.
var classNames = map[int]string{
	0: "BG",
	1: "PERSON",
	2: "PET_CAT",
	3: "PET_DOG",
	4: "SOFA",
	5: "TABLE",
	6: "BED",
	7: "EXCREMENT",
	8: "WIRE",
	9: "KEY",
}

// UnknownClass is the name of any class id without a mapping.
const UnknownClass = "UNKNOWN"

// ClassName resolves a detector class id.
func ClassName(id int) string {
	if name, ok := classNames[id]; ok {
		return name
	}
	return UnknownClass
}

package camera

import "github.com/banshee-data/depth.camera/internal/native"

// Detection is one decoded detector box.
type Detection struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	W         int     `json:"w"`
	H         int     `json:"h"`
	ClassID   int     `json:"class_id"`
	ClassName string  `json:"class_name"`
	Score     float64 `json:"score"`
}

// DecodeDetections unpacks flat (x, y, w, h, class id, score x1000) tuples.
// A trailing partial tuple is ignored.
func DecodeDetections(raw []int32) []Detection {
	n := len(raw) / native.BoxFields
	out := make([]Detection, 0, n)
	for i := 0; i < n; i++ {
		r := raw[i*native.BoxFields : (i+1)*native.BoxFields]
		id := int(r[4])
		out = append(out, Detection{
			X:         int(r[0]),
			Y:         int(r[1]),
			W:         int(r[2]),
			H:         int(r[3]),
			ClassID:   id,
			ClassName: ClassName(id),
			Score:     float64(r[5]) / 1000.0,
		})
	}
	return out
}

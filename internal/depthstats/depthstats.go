// Package depthstats summarises depth planes and point clouds for the
// HTTP API and debug charts.
package depthstats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/depth.camera/internal/camera"
)

// ErrGrid is returned when a region grid does not fit the depth plane.
var ErrGrid = errors.New("depthstats: grid does not fit depth plane")

// Region is one cell of a rows x cols grid over a depth plane. Zero depth
// marks a hole and is excluded from every statistic.
type Region struct {
	Row     int     `json:"row"`
	Col     int     `json:"col"`
	MeanMM  float64 `json:"mean_mm"`
	MinMM   float64 `json:"min_mm"`
	MaxMM   float64 `json:"max_mm"`
	StdMM   float64 `json:"std_mm"`
	Pixels  int     `json:"pixels"`
	Valid   int     `json:"valid"`
	IsValid bool    `json:"is_valid"`
}

// Coverage is the fraction of pixels in the region carrying depth.
func (r Region) Coverage() float64 {
	if r.Pixels == 0 {
		return 0
	}
	return float64(r.Valid) / float64(r.Pixels)
}

// Regions splits depth into a rows x cols grid and reports per-cell
// statistics over non-zero values. Cells on the right and bottom edges
// absorb any remainder.
func Regions(depth camera.Frame[uint16], rows, cols int) ([]Region, error) {
	h, w := depth.Height(), depth.Width()
	if rows <= 0 || cols <= 0 || rows > h || cols > w {
		return nil, ErrGrid
	}
	out := make([]Region, 0, rows*cols)
	vals := make([]float64, 0, (h/rows+1)*(w/cols+1))
	for r := 0; r < rows; r++ {
		y0, y1 := r*h/rows, (r+1)*h/rows
		for c := 0; c < cols; c++ {
			x0, x1 := c*w/cols, (c+1)*w/cols
			vals = vals[:0]
			for y := y0; y < y1; y++ {
				row := depth.Row(y)
				for x := x0; x < x1; x++ {
					if v := row[x]; v > 0 {
						vals = append(vals, float64(v))
					}
				}
			}
			reg := Region{Row: r, Col: c, Pixels: (y1 - y0) * (x1 - x0), Valid: len(vals)}
			if len(vals) > 0 {
				reg.IsValid = true
				reg.MeanMM, reg.StdMM = stat.MeanStdDev(vals, nil)
				if math.IsNaN(reg.StdMM) {
					reg.StdMM = 0
				}
				reg.MinMM = floats.Min(vals)
				reg.MaxMM = floats.Max(vals)
			}
			out = append(out, reg)
		}
	}
	return out, nil
}

// Histogram returns the non-zero depth values up to maxRange, in
// millimetres, ready for binning. Values beyond maxRange are dropped.
func Histogram(depth camera.Frame[uint16], maxRange uint16) []float64 {
	out := make([]float64, 0, depth.Len())
	for _, v := range depth.Data {
		if v == 0 || (maxRange > 0 && v > maxRange) {
			continue
		}
		out = append(out, float64(v))
	}
	return out
}

// Box is the axis-aligned extent and centroid of a point cloud, in metres.
type Box struct {
	Min      [3]float64 `json:"min"`
	Max      [3]float64 `json:"max"`
	Centroid [3]float64 `json:"centroid"`
	Count    int        `json:"count"`
}

// Bounds computes the extent of points. Points at the origin are the
// wrapper's marker for "no depth" and are skipped. ok is false when no
// point remains.
func Bounds(points []camera.Point) (box Box, ok bool) {
	axes := [3][]float64{}
	for i := range axes {
		axes[i] = make([]float64, 0, len(points))
	}
	for _, p := range points {
		if p.X == 0 && p.Y == 0 && p.Z == 0 {
			continue
		}
		axes[0] = append(axes[0], float64(p.X))
		axes[1] = append(axes[1], float64(p.Y))
		axes[2] = append(axes[2], float64(p.Z))
	}
	n := len(axes[0])
	if n == 0 {
		return Box{}, false
	}
	box.Count = n
	for i, a := range axes {
		box.Min[i] = floats.Min(a)
		box.Max[i] = floats.Max(a)
		box.Centroid[i] = floats.Sum(a) / float64(n)
	}
	return box, true
}

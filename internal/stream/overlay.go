package stream

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"slices"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/banshee-data/depth.camera/internal/camera"
)

// DepthColor is a colourised depth plane. Pix alpha is 0xff where the
// depth was valid after filtering and 0 elsewhere.
type DepthColor struct {
	Image   *image.RGBA
	Clamped []uint16
}

// Valid reports whether pixel (x, y) carries depth.
func (d DepthColor) Valid(x, y int) bool {
	return d.Image.RGBAAt(x, y).A == 0xff
}

// Colorize filters a depth plane and maps it to a JET palette with near
// values red and far values blue. Holes are filled from their immediate
// neighbours, and values beyond maxRange are treated as holes.
func Colorize(depth camera.Frame[uint16], maxRange int) DepthColor {
	w, h := depth.Width(), depth.Height()
	filtered := median3(depth.Data, w, h)
	filled := dilateCross(filtered, w, h)

	clamped := make([]uint16, w*h)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, v := range filtered {
		if v == 0 {
			v = filled[i]
		}
		if v == 0 || int(v) > maxRange {
			continue
		}
		clamped[i] = v
		norm := uint8(255 - float32(v)/float32(maxRange)*255)
		c := jet(norm)
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = 0xff
	}
	return DepthColor{Image: img, Clamped: clamped}
}

// median3 is a 3x3 median filter with replicated borders.
func median3(src []uint16, w, h int) []uint16 {
	out := make([]uint16, len(src))
	var win [9]uint16
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				yy := min(max(y+dy, 0), h-1)
				for dx := -1; dx <= 1; dx++ {
					xx := min(max(x+dx, 0), w-1)
					win[k] = src[yy*w+xx]
					k++
				}
			}
			slices.Sort(win[:])
			out[y*w+x] = win[4]
		}
	}
	return out
}

// dilateCross takes the maximum over each pixel and its four neighbours.
func dilateCross(src []uint16, w, h int) []uint16 {
	out := make([]uint16, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := src[y*w+x]
			if x > 0 {
				m = max(m, src[y*w+x-1])
			}
			if x < w-1 {
				m = max(m, src[y*w+x+1])
			}
			if y > 0 {
				m = max(m, src[(y-1)*w+x])
			}
			if y < h-1 {
				m = max(m, src[(y+1)*w+x])
			}
			out[y*w+x] = m
		}
	}
	return out
}

// jet maps 0..255 onto dark blue through cyan and yellow to dark red.
func jet(v uint8) color.RGBA {
	f := float64(v) / 255
	ch := func(centre float64) uint8 {
		c := 1.5 - abs(4*f-centre)
		return uint8(min(max(c, 0), 1)*255 + 0.5)
	}
	return color.RGBA{R: ch(3), G: ch(2), B: ch(1), A: 0xff}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Overlay blends colourised depth over a grayscale frame, marks the centre
// and labels it with the centre distance. A nil depth draws the frame alone.
func Overlay(frame *image.Gray, depth *camera.Frame[uint16], alpha float64, maxRange int) *image.RGBA {
	b := frame.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, frame, b.Min, draw.Src)
	if depth == nil || depth.Len() == 0 {
		return out
	}

	dc := Colorize(*depth, maxRange)
	dw, dh := depth.Width(), depth.Height()
	scaled := dc.Image
	if dw != b.Dx() || dh != b.Dy() {
		scaled = image.NewRGBA(b)
		xdraw.NearestNeighbor.Scale(scaled, b, dc.Image, dc.Image.Bounds(), xdraw.Src, nil)
	}

	for i := 0; i < len(out.Pix); i += 4 {
		if scaled.Pix[i+3] != 0xff {
			continue
		}
		for c := 0; c < 3; c++ {
			v := float64(out.Pix[i+c])*(1-alpha) + float64(scaled.Pix[i+c])*alpha
			out.Pix[i+c] = uint8(v + 0.5)
		}
	}

	cx, cy := b.Dx()/2, b.Dy()/2
	sx, sy := min(cx*dw/b.Dx(), dw-1), min(cy*dh/b.Dy(), dh-1)
	label := "N/A"
	if v := dc.Clamped[sy*dw+sx]; v > 0 {
		label = fmt.Sprintf("%.2fm", float64(v)/1000)
	}
	crosshair(out, cx, cy, 10)
	drawLabel(out, cx+15, cy-10, label)
	return out
}

func crosshair(img *image.RGBA, cx, cy, arm int) {
	white := color.RGBA{0xff, 0xff, 0xff, 0xff}
	for d := -arm; d <= arm; d++ {
		for t := -1; t <= 0; t++ {
			img.SetRGBA(cx+d, cy+t, white)
			img.SetRGBA(cx+t, cy+d, white)
		}
	}
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

package raster

import (
	gomath "math"

	"github.com/Faultbox/turntable/pkg/math"
)

// FrameBuffer is a bottom-up RGBA color buffer with a depth buffer.
// Uncovered pixels keep alpha 0.
type FrameBuffer struct {
	Width, Height int
	Color         []byte
	Depth         []float64
}

// NewFrameBuffer allocates a cleared buffer.
func NewFrameBuffer(width, height int) *FrameBuffer {
	fb := &FrameBuffer{
		Width:  width,
		Height: height,
		Color:  make([]byte, width*height*4),
		Depth:  make([]float64, width*height),
	}
	for i := range fb.Depth {
		fb.Depth[i] = gomath.Inf(1)
	}
	return fb
}

// vertex is a projected point: pixel coordinates plus view depth.
type vertex struct {
	x, y, z float64
}

func edge(a, b vertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// FillTriangle rasterizes one flat-shaded triangle with a depth test.
// Both windings are drawn.
func (fb *FrameBuffer) FillTriangle(a, b, c vertex, shade math.Vec3) {
	area := edge(a, b, c.x, c.y)
	if area == 0 || gomath.IsNaN(area) {
		return
	}

	minX := clampInt(int(gomath.Floor(gomath.Min(a.x, gomath.Min(b.x, c.x)))), 0, fb.Width-1)
	maxX := clampInt(int(gomath.Ceil(gomath.Max(a.x, gomath.Max(b.x, c.x)))), 0, fb.Width-1)
	minY := clampInt(int(gomath.Floor(gomath.Min(a.y, gomath.Min(b.y, c.y)))), 0, fb.Height-1)
	maxY := clampInt(int(gomath.Ceil(gomath.Max(a.y, gomath.Max(b.y, c.y)))), 0, fb.Height-1)

	r, g, bl := toByte(shade.X), toByte(shade.Y), toByte(shade.Z)

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(b, c, px, py) / area
			w1 := edge(c, a, px, py) / area
			w2 := edge(a, b, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			z := w0*a.z + w1*b.z + w2*c.z
			idx := y*fb.Width + x
			if z >= fb.Depth[idx] {
				continue
			}
			fb.Depth[idx] = z

			p := idx * 4
			fb.Color[p] = r
			fb.Color[p+1] = g
			fb.Color[p+2] = bl
			fb.Color[p+3] = 255
		}
	}
}

func toByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

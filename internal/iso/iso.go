// Package iso turns a flat square texture into a 2:1 isometric diamond.
package iso

import (
	"errors"
	"image"
	gomath "math"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/Faultbox/turntable/internal/imageio"
)

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("empty image")

// Angle is the counter-clockwise rotation applied before squashing.
const Angle = 45.0

// Squash is the vertical scale applied after rotating.
const Squash = 0.5

// Rotate turns src counter-clockwise by deg degrees with bicubic
// resampling. The canvas grows to hold the whole result; uncovered
// pixels are transparent.
func Rotate(src image.Image, deg float64) *image.RGBA {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	rad := deg * gomath.Pi / 180
	cos, sin := gomath.Cos(rad), gomath.Sin(rad)

	nw := int(gomath.Ceil(w*gomath.Abs(cos) + h*gomath.Abs(sin) - 1e-9))
	nh := int(gomath.Ceil(w*gomath.Abs(sin) + h*gomath.Abs(cos) - 1e-9))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))

	// Source center (in src coordinates) lands on the canvas center.
	cx, cy := float64(b.Min.X)+w/2, float64(b.Min.Y)+h/2
	ncx, ncy := float64(nw)/2, float64(nh)/2
	s2d := f64.Aff3{
		cos, sin, ncx - cos*cx - sin*cy,
		-sin, cos, ncy + sin*cx - cos*cy,
	}
	draw.CatmullRom.Transform(dst, s2d, src, b, draw.Over, nil)
	return dst
}

// Project rotates src by Angle and scales its height by Squash, keeping
// the width. Alpha is preserved.
func Project(src image.Image) (*image.NRGBA, error) {
	if src.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	rotated := Rotate(src, Angle)
	w := rotated.Bounds().Dx()
	h := int(float64(rotated.Bounds().Dy()) * Squash)
	if h < 1 {
		h = 1
	}
	return imageio.ToNRGBA(transform.Resize(rotated, w, h, transform.CatmullRom)), nil
}

// ProjectFile projects the image at in and writes a PNG to out.
func ProjectFile(in, out string) error {
	src, err := imageio.ReadNRGBA(in)
	if err != nil {
		return err
	}
	dst, err := Project(src)
	if err != nil {
		return err
	}
	return imageio.WritePNG(out, dst)
}

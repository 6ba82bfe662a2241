// Package stills produces static square thumbnails of an asset image.
package stills

import (
	"fmt"
	"image"
	gomath "math"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"

	"github.com/Faultbox/turntable/internal/imageio"
)

// Fit scales src down (never up) to fit inside size x size, keeping its
// aspect ratio, and centers it on a transparent square canvas.
func Fit(src image.Image, size int) (*image.NRGBA, error) {
	if size < 1 {
		return nil, fmt.Errorf("invalid still size %d", size)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty source image")
	}

	w, h := b.Dx(), b.Dy()
	scale := gomath.Min(1, gomath.Min(float64(size)/float64(w), float64(size)/float64(h)))
	nw := max(1, int(gomath.Round(float64(w)*scale)))
	nh := max(1, int(gomath.Round(float64(h)*scale)))

	var scaled image.Image = src
	if nw != w || nh != h {
		scaled = transform.Resize(src, nw, nh, transform.Lanczos)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	at := image.Pt((size-nw)/2, (size-nh)/2)
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(image.Pt(nw, nh))}, scaled, scaled.Bounds().Min, draw.Src)
	return dst, nil
}

// Path returns the output path of the size-pixel still for base, e.g.
// "out/sigil.png" at 64 becomes "out/sigil_64.png".
func Path(base string, size int) string {
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, filepath.Ext(base)), size, ext)
}

// WriteAll writes one still per size next to base and returns their paths.
func WriteAll(src image.Image, base string, sizes []int) ([]string, error) {
	paths := make([]string, 0, len(sizes))
	for _, size := range sizes {
		img, err := Fit(src, size)
		if err != nil {
			return nil, err
		}
		p := Path(base, size)
		if err := imageio.WritePNG(p, img); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Package loop encodes an ordered frame sequence into a looping GIF with
// 1-bit transparency: alpha is thresholded, partial alpha is flattened
// onto a backdrop, all frames share one palette, and palette index 0 is
// reserved for transparent pixels.
package loop

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ericpauley/go-quantize/quantize"

	"github.com/Faultbox/turntable/internal/imageio"
)

// TransparentIndex is the palette slot every non-opaque pixel maps to.
const TransparentIndex = 0

// Sentinel is the color stored at TransparentIndex: a saturated magenta
// with zero alpha. Opaque pixels are only ever mapped to indices above it.
var Sentinel = color.RGBA{R: 0xff, G: 0x00, B: 0xff, A: 0x00}

var (
	// ErrNoFrames is returned when there is nothing to encode.
	ErrNoFrames = errors.New("no frames to encode")
	// ErrFrameSize is returned when frames differ in size.
	ErrFrameSize = errors.New("frame size mismatch")
)

// Options controls encoding.
type Options struct {
	// Delay is the display time of every frame.
	Delay time.Duration
	// LoopCount is the number of repeats; 0 loops forever.
	LoopCount int
	// AlphaThreshold: a pixel is opaque when its alpha is above it.
	AlphaThreshold uint8
	// MaxColors caps the opaque palette, at most 255.
	MaxColors int
	// Backdrop is the opaque color partial alpha is flattened onto.
	Backdrop color.NRGBA
}

// DefaultOptions returns 50ms frames, infinite loop, threshold 128,
// 255 colors and a black backdrop.
func DefaultOptions() Options {
	return Options{
		Delay:          50 * time.Millisecond,
		LoopCount:      0,
		AlphaThreshold: 128,
		MaxColors:      255,
		Backdrop:       color.NRGBA{A: 0xff},
	}
}

func (o Options) maxColors() int {
	if o.MaxColors < 1 || o.MaxColors > 255 {
		return 255
	}
	return o.MaxColors
}

// delayCentis converts Delay to GIF hundredths of a second, at least 1.
func (o Options) delayCentis() int {
	d := int((o.Delay + 5*time.Millisecond) / (10 * time.Millisecond))
	if d < 1 {
		return 1
	}
	return d
}

// flatFrame is a frame after thresholding and flattening.
type flatFrame struct {
	rgb    []color.RGBA // opaque, row-major
	opaque []bool
}

// flatten thresholds alpha and composites img onto the backdrop.
func flatten(img *image.NRGBA, opt Options) flatFrame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	f := flatFrame{rgb: make([]color.RGBA, w*h), opaque: make([]bool, w*h)}
	bg := opt.Backdrop

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			f.opaque[i] = c.A > opt.AlphaThreshold
			a := uint32(c.A)
			f.rgb[i] = color.RGBA{
				R: uint8((uint32(c.R)*a + uint32(bg.R)*(255-a) + 127) / 255),
				G: uint8((uint32(c.G)*a + uint32(bg.G)*(255-a) + 127) / 255),
				B: uint8((uint32(c.B)*a + uint32(bg.B)*(255-a) + 127) / 255),
				A: 0xff,
			}
		}
	}
	return f
}

// atlas gathers every opaque pixel of every frame into one image the
// quantizer can sample, so all frames share one palette.
func atlas(frames []flatFrame) *image.RGBA {
	n := 0
	for _, f := range frames {
		for _, o := range f.opaque {
			if o {
				n++
			}
		}
	}
	if n == 0 {
		return nil
	}

	img := image.NewRGBA(image.Rect(0, 0, n, 1))
	x := 0
	for _, f := range frames {
		for i, o := range f.opaque {
			if o {
				img.SetRGBA(x, 0, f.rgb[i])
				x++
			}
		}
	}
	return img
}

// Palette builds the shared palette: the sentinel followed by at most
// MaxColors opaque colors chosen by median cut.
func buildPalette(frames []flatFrame, opt Options) color.Palette {
	pal := color.Palette{Sentinel}
	src := atlas(frames)
	if src == nil {
		return pal
	}

	q := quantize.MedianCutQuantizer{}
	for _, c := range q.Quantize(make(color.Palette, 0, opt.maxColors()), src) {
		r, g, b, _ := c.RGBA()
		pal = append(pal, color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff})
	}
	return pal
}

// indexer maps opaque colors to palette indices 1..len-1.
type indexer struct {
	opaque color.Palette
	cache  map[color.RGBA]uint8
}

func newIndexer(pal color.Palette) *indexer {
	return &indexer{opaque: pal[1:], cache: make(map[color.RGBA]uint8)}
}

func (ix *indexer) index(c color.RGBA) uint8 {
	if i, ok := ix.cache[c]; ok {
		return i
	}
	i := uint8(ix.opaque.Index(c) + 1)
	ix.cache[c] = i
	return i
}

// Build converts frames into a looping animation. All frames must share
// the same bounds size. A single frame encodes as a still GIF: image/gif
// writes the looping extension only for two or more frames, so it decodes
// with LoopCount -1.
func Build(frames []image.Image, opt Options) (*gif.GIF, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	size := frames[0].Bounds().Size()
	flat := make([]flatFrame, len(frames))
	for i, f := range frames {
		if s := f.Bounds().Size(); s != size {
			return nil, fmt.Errorf("%w: frame %d is %v, frame 0 is %v", ErrFrameSize, i, s, size)
		}
		flat[i] = flatten(imageio.ToNRGBA(f), opt)
	}

	pal := buildPalette(flat, opt)
	rect := image.Rect(0, 0, size.X, size.Y)
	anim := &gif.GIF{
		Image:     make([]*image.Paletted, len(flat)),
		Delay:     make([]int, len(flat)),
		Disposal:  make([]byte, len(flat)),
		LoopCount: opt.LoopCount,
		Config: image.Config{
			ColorModel: pal,
			Width:      size.X,
			Height:     size.Y,
		},
		BackgroundIndex: TransparentIndex,
	}

	ix := newIndexer(pal)
	for i, f := range flat {
		p := image.NewPaletted(rect, pal)
		if len(pal) > 1 {
			for j, o := range f.opaque {
				if o {
					p.Pix[j] = ix.index(f.rgb[j])
				}
			}
		}
		anim.Image[i] = p
		anim.Delay[i] = opt.delayCentis()
		anim.Disposal[i] = gif.DisposalBackground
	}
	return anim, nil
}

// Encode builds the animation and writes it to w.
func Encode(w io.Writer, frames []image.Image, opt Options) error {
	anim, err := Build(frames, opt)
	if err != nil {
		return err
	}
	return gif.EncodeAll(w, anim)
}

// EncodeFiles reads frame images in order and writes the animation to
// outPath. The file is written to a temporary name first, so a failed
// encode never leaves a truncated animation behind.
func EncodeFiles(paths []string, outPath string, opt Options) error {
	if len(paths) == 0 {
		return ErrNoFrames
	}

	frames := make([]image.Image, len(paths))
	for i, p := range paths {
		img, err := imageio.ReadNRGBA(p)
		if err != nil {
			return fmt.Errorf("reading frame %d: %w", i, err)
		}
		frames[i] = img
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".loop-*.gif")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, frames, opt); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), outPath)
}

// ParseColor parses "#rrggbb" or "rrggbb" into an opaque color.
func ParseColor(s string) (color.NRGBA, error) {
	var r, g, b uint8
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

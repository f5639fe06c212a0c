// Package gif renders batches of visible states as the frames of an animated GIF.
// Each row of a batch is drawn as a grayscale tile, and every frame carries a caption.
package gif

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
	"gorgonia.org/tensor"
)

var regular *truetype.Font

const (
	dpi        = 144.0
	fontsize   = 12.0
	lineheight = 1.2
	pad        = 10
	gap        = 2
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var grays = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{uint8(i)}
	}
	return p
}()

// Encoder accumulates frames and writes them out on Flush.
type Encoder struct {
	H, W    int // tile shape; a row of a batch must hold H*W units
	Scale   int // pixels per unit
	Columns int // tiles per line of a frame, 0 picks a square grid
	Delay   int // per frame, in 100ths of a second
	io.Writer
	font.Drawer

	out        *gif.GIF
	bounds     image.Rectangle
	ascent     int // caption baseline below the top padding
	lineHeight int // caption band, tiles start below it
}

// NewEncoder creates an encoder of h×w tiles writing into w.
func NewEncoder(out io.Writer, h, w int) *Encoder {
	face := truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	metrics := face.Metrics()
	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	if ch := (metrics.Ascent + metrics.Descent).Ceil(); ch > dy {
		dy = ch
	}
	return &Encoder{
		H:      h,
		W:      w,
		Scale:  4,
		Delay:  50,
		Writer: out,
		Drawer: font.Drawer{
			Src:  image.Black,
			Face: face,
		},
		out:        &gif.GIF{LoopCount: 0},
		ascent:     metrics.Ascent.Ceil(),
		lineHeight: dy + gap,
	}
}

// Frames returns the number of encoded frames.
func (enc *Encoder) Frames() int { return len(enc.out.Image) }

// Encode adds a frame drawing every row of v, a (batch, H*W) tensor. Values are mapped onto
// the gray levels by the minimum and maximum of v. All frames share the size of the first.
func (enc *Encoder) Encode(v *tensor.Dense, caption string) error {
	shp := v.Shape()
	if shp.Dims() != 2 || shp[1] != enc.H*enc.W {
		return errors.Errorf("cannot draw a %v batch as %d×%d tiles", shp, enc.H, enc.W)
	}
	if enc.Scale < 1 {
		return errors.Errorf("invalid scale %d", enc.Scale)
	}
	data, ok := v.Data().([]float32)
	if !ok {
		return errors.Errorf("expected float32 units, got %v", v.Dtype())
	}
	rows := shp[0]
	cols := enc.columns(rows)
	tileH, tileW := enc.H*enc.Scale+gap, enc.W*enc.Scale+gap
	if enc.bounds.Empty() {
		w := cols*tileW + 2*pad
		if cw := font.MeasureString(enc.Face, caption).Ceil() + 2*pad; cw > w {
			w = cw
		}
		lines := (rows + cols - 1) / cols
		h := lines*tileH + enc.lineHeight + 2*pad
		enc.bounds = image.Rect(0, 0, w, h)
	}

	im := image.NewPaletted(enc.bounds, grays)
	draw.Draw(im, im.Bounds(), image.White, image.Point{}, draw.Src)

	lo, hi := bounds(data)
	span := hi - lo
	top := pad + enc.lineHeight
	for r := 0; r < rows; r++ {
		x0 := pad + (r%cols)*tileW
		y0 := top + (r/cols)*tileH
		row := data[r*enc.H*enc.W : (r+1)*enc.H*enc.W]
		for i, x := range row {
			level := uint8(255)
			if span > 0 {
				level = uint8(math32.Floor(255*(x-lo)/span + 0.5))
			}
			px := image.Rect(0, 0, enc.Scale, enc.Scale).Add(image.Pt(x0+(i%enc.W)*enc.Scale, y0+(i/enc.W)*enc.Scale))
			draw.Draw(im, px.Intersect(enc.bounds), &image.Uniform{color.Gray{level}}, image.Point{}, draw.Src)
		}
	}

	enc.Dst = im
	enc.Dot = fixed.P(pad, pad+enc.ascent)
	enc.DrawString(caption)

	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, enc.Delay)
	return nil
}

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error {
	if len(enc.out.Image) == 0 {
		return errors.New("no frames to write")
	}
	return errors.WithStack(gif.EncodeAll(enc.Writer, enc.out))
}

func (enc *Encoder) columns(rows int) int {
	if enc.Columns > 0 {
		return enc.Columns
	}
	c := int(math.Ceil(math.Sqrt(float64(rows))))
	if c < 1 {
		c = 1
	}
	return c
}

func bounds(a []float32) (lo, hi float32) {
	lo, hi = math32.Inf(1), math32.Inf(-1)
	for _, x := range a {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return
}

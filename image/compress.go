package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	// Decoders for the formats phones and galleries hand us.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const (
	DefaultMaxDimension = 1200
	DefaultQuality      = 75
)

var ErrEmptyImage = errors.New("empty image data")

// Compressor downsizes photos so neither side exceeds MaxDimension and
// re-encodes them as JPEG at Quality.
type Compressor struct {
	MaxDimension int
	Quality      int
}

// Result describes what Compress did to one image.
type Result struct {
	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	Orientation    int
	InputBytes     int
	OutputBytes    int
}

// Scaled reports whether the output dimensions differ from the (oriented) input.
func (r Result) Scaled() bool {
	return r.Width != r.OriginalWidth || r.Height != r.OriginalHeight
}

// NewCompressor returns a compressor, falling back to the defaults for non-positive values.
func NewCompressor(maxDimension, quality int) Compressor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return Compressor{MaxDimension: maxDimension, Quality: quality}
}

// FitWithin proportionally shrinks width x height so both fit in maxDim.
// Dimensions that already fit are returned unchanged.
func FitWithin(width, height, maxDim int) (int, int) {
	if width <= maxDim && height <= maxDim {
		return width, height
	}
	scale := math.Min(float64(maxDim)/float64(width), float64(maxDim)/float64(height))
	w := clamp(int(math.Round(float64(width)*scale)), 1, maxDim)
	h := clamp(int(math.Round(float64(height)*scale)), 1, maxDim)
	return w, h
}

// Compress decodes data, applies EXIF orientation, downsizes and re-encodes as JPEG.
func (c Compressor) Compress(data []byte) ([]byte, Result, error) {
	res := Result{InputBytes: len(data)}
	if len(data) == 0 {
		return nil, res, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, res, fmt.Errorf("failed to decode image: %w", err)
	}

	res.Orientation = Orientation(data)
	img = Orient(img, res.Orientation)

	bounds := img.Bounds()
	res.OriginalWidth, res.OriginalHeight = bounds.Dx(), bounds.Dy()
	res.Width, res.Height = FitWithin(res.OriginalWidth, res.OriginalHeight, c.MaxDimension)

	// JPEG has no alpha; flatten onto white like a canvas export would.
	dst := image.NewRGBA(image.Rect(0, 0, res.Width, res.Height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if res.Scaled() {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	} else {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: c.Quality}); err != nil {
		return nil, res, fmt.Errorf("failed to encode compressed image: %w", err)
	}
	res.OutputBytes = buf.Len()

	log.WithFields(log.Fields{
		"in_bytes":    res.InputBytes,
		"out_bytes":   res.OutputBytes,
		"original":    fmt.Sprintf("%dx%d", res.OriginalWidth, res.OriginalHeight),
		"output":      fmt.Sprintf("%dx%d", res.Width, res.Height),
		"orientation": res.Orientation,
		"quality":     c.Quality,
	}).Debug("photo compressed")

	return buf.Bytes(), res, nil
}

// Orientation reads the EXIF orientation tag, 1 when absent or unreadable.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// Orient returns img transformed so that it displays upright for the given
// EXIF orientation. Orientations 5-8 swap width and height.
func Orient(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	out := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := orientedPoint(x, y, w, h, orientation)
			out.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// orientedPoint maps a source pixel to its destination for one EXIF orientation.
func orientedPoint(x, y, w, h, orientation int) (int, int) {
	switch orientation {
	case 2: // mirror horizontal
		return w - 1 - x, y
	case 3: // rotate 180
		return w - 1 - x, h - 1 - y
	case 4: // mirror vertical
		return x, h - 1 - y
	case 5: // transpose
		return y, x
	case 6: // rotate 90 cw
		return h - 1 - y, x
	case 7: // transverse
		return h - 1 - y, w - 1 - x
	case 8: // rotate 90 ccw
		return y, w - 1 - x
	default:
		return x, y
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

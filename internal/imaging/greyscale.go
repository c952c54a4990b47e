// Package imaging turns customer photos into greyscale copies before they
// are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ErrDecode is returned when the source bytes are not a supported image.
var ErrDecode = errors.New("imaging: cannot decode image")

// JPEGQuality matches the default quality browsers use when re-encoding a canvas.
const JPEGQuality = 92

// File is an image as selected by the user: original name, declared media
// type and raw bytes.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Normalizer produces a processed copy of a file.
type Normalizer interface {
	Normalize(f File) (File, error)
}

// Greyscale replaces every pixel's colour with its luminance
// 0.299R + 0.587G + 0.114B. Dimensions, alpha, format and declared media
// type are preserved.
type Greyscale struct{}

func (Greyscale) Normalize(f File) (File, error) {
	src, format, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return File{}, fmt.Errorf("%w %q: %v", ErrDecode, f.Name, err)
	}

	var out image.Image
	if p, ok := src.(*image.Paletted); ok {
		out = greyPaletted(p)
	} else {
		out = greyNRGBA(src)
	}

	var buf bytes.Buffer
	if err := encode(&buf, out, format); err != nil {
		return File{}, fmt.Errorf("imaging: encode %q: %w", f.Name, err)
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "image/" + format
	}

	return File{
		Name:        "greyscale_" + f.Name,
		ContentType: contentType,
		Data:        buf.Bytes(),
	}, nil
}

// Luminance returns the rounded grey level for an 8-bit RGB triple.
func Luminance(r, g, b uint8) uint8 {
	l := math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
	if l > 255 {
		return 255
	}
	return uint8(l)
}

func greyNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			l := Luminance(c.R, c.G, c.B)
			dst.SetNRGBA(x, y, color.NRGBA{R: l, G: l, B: l, A: c.A})
		}
	}
	return dst
}

// greyPaletted rewrites the palette so gif and paletted png stay paletted.
func greyPaletted(src *image.Paletted) *image.Paletted {
	palette := make(color.Palette, len(src.Palette))
	for i, pc := range src.Palette {
		c := color.NRGBAModel.Convert(pc).(color.NRGBA)
		l := Luminance(c.R, c.G, c.B)
		palette[i] = color.NRGBA{R: l, G: l, B: l, A: c.A}
	}

	return &image.Paletted{
		Pix:     append([]uint8(nil), src.Pix...),
		Stride:  src.Stride,
		Rect:    src.Rect,
		Palette: palette,
	}
}

func encode(buf *bytes.Buffer, img image.Image, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality})
	case "png":
		return png.Encode(buf, img)
	case "gif":
		return gif.Encode(buf, img, nil)
	case "bmp":
		return bmp.Encode(buf, img)
	case "tiff":
		return tiff.Encode(buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

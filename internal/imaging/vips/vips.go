// Package vips is the libvips-backed greyscale normalizer. It needs cgo and
// libvips at build time.
package vips

import (
	"fmt"

	"github.com/h2non/bimg"

	"github.com/petermazzocco/go-order-wizard/internal/imaging"
)

// Greyscale converts images to libvips' B_W interpretation, keeping the
// source type. libvips weighs channels with its own luminance coefficients,
// so output differs slightly from imaging.Greyscale.
type Greyscale struct{}

func (Greyscale) Normalize(f imaging.File) (imaging.File, error) {
	imageType := bimg.DetermineImageType(f.Data)
	if imageType == bimg.UNKNOWN {
		return imaging.File{}, fmt.Errorf("%w %q", imaging.ErrDecode, f.Name)
	}

	out, err := bimg.NewImage(f.Data).Process(bimg.Options{
		Interpretation: bimg.InterpretationBW,
		Type:           imageType,
	})
	if err != nil {
		return imaging.File{}, fmt.Errorf("%w %q: %v", imaging.ErrDecode, f.Name, err)
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "image/" + bimg.ImageTypeName(imageType)
	}

	return imaging.File{
		Name:        "greyscale_" + f.Name,
		ContentType: contentType,
		Data:        out,
	}, nil
}

// Package image loads and saves the RGBA8 pixel buffers the blur pipeline
// operates on.
package image

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// BytesPerPixel is the size of one RGBA8 pixel.
const BytesPerPixel = 4

// Image errors.
var (
	// ErrEmptyImage is returned for an image with zero width or height.
	ErrEmptyImage = errors.New("image: width and height must be positive")

	// ErrPixelSize is returned when Pix does not hold Width*Height*4 bytes.
	ErrPixelSize = errors.New("image: pixel data does not match dimensions")
)

// Image is a non-premultiplied RGBA8 raster stored row-major with no
// padding between rows.
type Image struct {
	Width  uint32
	Height uint32
	Pix    []byte
}

// New returns a zeroed (transparent black) w×h image.
func New(w, h uint32) (*Image, error) {
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, w, h)
	}
	return &Image{Width: w, Height: h, Pix: make([]byte, int(w)*int(h)*BytesPerPixel)}, nil
}

// Validate checks the dimensions and the pixel slice length.
func (m *Image) Validate() error {
	if m == nil || m.Width == 0 || m.Height == 0 {
		var w, h uint32
		if m != nil {
			w, h = m.Width, m.Height
		}
		return fmt.Errorf("%w: %dx%d", ErrEmptyImage, w, h)
	}
	if want := uint64(m.Width) * uint64(m.Height) * BytesPerPixel; uint64(len(m.Pix)) != want {
		return fmt.Errorf("%w: %d bytes for %dx%d, want %d", ErrPixelSize, len(m.Pix), m.Width, m.Height, want)
	}
	return nil
}

// Stride is the number of bytes per row.
func (m *Image) Stride() int { return int(m.Width) * BytesPerPixel }

// FromStd converts any decoded image to RGBA8. NRGBA sources with a
// tight stride are copied directly; everything else goes through draw.
func FromStd(src image.Image) (*Image, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, b.Dx(), b.Dy())
	}
	m, err := New(uint32(b.Dx()), uint32(b.Dy()))
	if err != nil {
		return nil, err
	}

	if nrgba, ok := src.(*image.NRGBA); ok {
		stride := m.Stride()
		for y := 0; y < b.Dy(); y++ {
			off := nrgba.PixOffset(b.Min.X, b.Min.Y+y)
			copy(m.Pix[y*stride:(y+1)*stride], nrgba.Pix[off:off+stride])
		}
		return m, nil
	}

	dst := m.NRGBA()
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return m, nil
}

// NRGBA returns an *image.NRGBA that shares Pix with m.
func (m *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    m.Pix,
		Stride: m.Stride(),
		Rect:   image.Rect(0, 0, int(m.Width), int(m.Height)),
	}
}

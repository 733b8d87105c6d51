package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Registered decoders for Load.
	_ "image/gif"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// I/O errors.
var (
	// ErrUnsupportedFormat is returned when the image format is not supported.
	ErrUnsupportedFormat = errors.New("image: unsupported format")

	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("image: empty data")
)

// JPEGQuality is the quality used when saving JPEG files.
const JPEGQuality = 90

// Format is an output encoding.
type Format int

// Supported output formats.
const (
	FormatPNG Format = iota
	FormatJPEG
	FormatBMP
	FormatTIFF
)

// String returns the conventional name of the format.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the output format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".bmp":
		return FormatBMP, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Load decodes the image at path. The format is detected from the content,
// so PNG, JPEG, GIF, BMP, TIFF and WebP files load regardless of extension.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("image: open %s: %w", path, err)
	}
	m, err := DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// DecodeBytes decodes an image held in memory.
func DecodeBytes(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	m, _, err := Decode(bytes.NewReader(data))
	return m, err
}

// Decode decodes an image from r, auto-detecting the format, and returns
// it with the registered format name.
func Decode(r io.Reader) (*Image, string, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return nil, "", fmt.Errorf("image: decode: %w", err)
	}
	m, err := FromStd(src)
	if err != nil {
		return nil, "", err
	}
	return m, format, nil
}

// Encode writes m to w in the given format.
func Encode(w io.Writer, m *Image, format Format) error {
	if err := m.Validate(); err != nil {
		return err
	}
	img := m.NRGBA()

	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("image: encode %s: %w", format, err)
	}
	return nil
}

// Save encodes m into path, choosing the format from the extension.
//
// The data is written to a temporary file in the same directory and
// renamed over path only after a successful encode, so a failure never
// leaves a truncated file behind.
func Save(path string, m *Image) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("image: create %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	_ = tmp.Chmod(0o644)

	if err := Encode(tmp, m, format); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("image: rename into %s: %w", path, err)
	}
	return nil
}

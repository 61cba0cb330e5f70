// Package raster implements the resize/compress pipeline: a source image is
// redrawn into a fresh surface on every parameter change and the surface is
// offered as a JPEG.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	// Register decoders for every format the picker accepts.
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads any registered raster format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// DecodeConfig reads only the header of any registered raster format.
func DecodeConfig(r io.Reader) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("decode image header: %w", err)
	}
	return cfg, format, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(data))
}

// JPEGQuality maps a fractional quality in [0,1] onto the encoder's 1..100
// scale. Out-of-range values are clamped.
func JPEGQuality(q float64) int {
	q = ClampQuality(q)
	n := int(math.Round(q * 100))
	if n < 1 {
		n = 1
	}
	return n
}

// ClampQuality limits q to [0,1]
func ClampQuality(q float64) float64 {
	switch {
	case q < 0:
		return 0
	case q > 1:
		return 1
	default:
		return q
	}
}

// EncodeJPEG encodes img with a fractional quality
func EncodeJPEG(w io.Writer, img image.Image, quality float64) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality(quality)}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

// EncodePNG encodes img losslessly
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ToNRGBA converts img to 8-bit non-premultiplied RGBA, which every
// consumer of this package (PDF embedding, PNG output) accepts.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

package raster

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Interpolation names the scaling kernel used when drawing into a surface.
type Interpolation string

const (
	InterpolationNearest    Interpolation = "nearest"
	InterpolationBilinear   Interpolation = "bilinear"
	InterpolationCatmullRom Interpolation = "catmullrom"
	InterpolationLanczos3   Interpolation = "lanczos3"
)

// ParseInterpolation validates an interpolation name
func ParseInterpolation(s string) (Interpolation, error) {
	switch i := Interpolation(s); i {
	case InterpolationNearest, InterpolationBilinear, InterpolationCatmullRom, InterpolationLanczos3:
		return i, nil
	case "":
		return InterpolationBilinear, nil
	default:
		return "", fmt.Errorf("unknown interpolation %q", s)
	}
}

// NewSurface allocates a drawing surface of exactly width x height and draws
// src scaled to fill it.
func NewSurface(src image.Image, width, height int, interp Interpolation) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("surface size must be positive, got %dx%d", width, height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if src == nil {
		return dst, nil
	}

	switch interp {
	case InterpolationLanczos3:
		scaled := resize.Resize(uint(width), uint(height), src, resize.Lanczos3)
		draw.Draw(dst, dst.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	default:
		scalerFor(interp).Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
	return dst, nil
}

func scalerFor(interp Interpolation) draw.Scaler {
	switch interp {
	case InterpolationNearest:
		return draw.NearestNeighbor
	case InterpolationCatmullRom:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

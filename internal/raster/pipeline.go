package raster

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/observability"
)

// Params is one snapshot of the user's resize inputs.
type Params struct {
	Width   int
	Height  int
	Quality float64
}

// DefaultMaxPixels bounds the area of both the source and the surface.
const DefaultMaxPixels = 100_000_000

// Options configures a Pipeline.
type Options struct {
	FileName       string
	DefaultQuality float64
	Interpolation  Interpolation
	MaxPixels      int64
	Logger         *observability.Logger
}

// Pipeline holds the single drawing surface of the resize feature. Every
// change to Params redraws the source into a newly sized surface and rebinds
// the export action.
type Pipeline struct {
	mu     sync.Mutex
	opts   Options
	logger *observability.Logger

	source  image.Image
	params  Params
	surface *image.RGBA

	// export is the currently bound export action; nil until the first
	// successful recompute. Each recompute replaces it.
	export func() (domain.OutputFile, error)
}

// NewPipeline creates an empty pipeline
func NewPipeline(opts Options) *Pipeline {
	if opts.FileName == "" {
		opts.FileName = "compressed-image.jpg"
	}
	if opts.DefaultQuality <= 0 || opts.DefaultQuality > 1 {
		opts.DefaultQuality = 0.92
	}
	if opts.Interpolation == "" {
		opts.Interpolation = InterpolationBilinear
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Pipeline{
		opts:   opts,
		logger: logger.WithComponent("raster"),
		params: Params{Quality: opts.DefaultQuality},
	}
}

// Load replaces the source image and renders it at its native size.
// If r does not hold a decodable image, or its header declares more pixels
// than the limit, the pipeline is left untouched.
func (p *Pipeline) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.IOError("cannot read image", err)
	}

	hdr, _, err := DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.IOError("cannot load image", err)
	}
	if err := p.checkArea(hdr.Width, hdr.Height); err != nil {
		return err
	}

	img, format, err := Decode(bytes.NewReader(data))
	if err != nil {
		return domain.IOError("cannot load image", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b := img.Bounds()
	p.source = img
	p.logger.Debug().
		Str("format", format).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Msg("Source image loaded")

	return p.recompute(Params{Width: b.Dx(), Height: b.Dy(), Quality: p.params.Quality})
}

// LoadBytes is Load over an in-memory buffer
func (p *Pipeline) LoadBytes(data []byte) error {
	return p.Load(bytes.NewReader(data))
}

// Update parses raw width, height and quality inputs and recomputes.
// An empty string keeps the current value of that parameter.
func (p *Pipeline) Update(width, height, quality string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := parseParams(p.params, p.opts.DefaultQuality, width, height, quality)
	if err != nil {
		return err
	}
	return p.recompute(next)
}

// Recompute redraws the surface for the given parameters
func (p *Pipeline) Recompute(params Params) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recompute(params)
}

func (p *Pipeline) recompute(params Params) error {
	if p.source == nil {
		return domain.ValidationError("no source image loaded", nil)
	}
	params.Quality = ClampQuality(params.Quality)
	if err := p.checkArea(params.Width, params.Height); err != nil {
		return err
	}

	surface, err := NewSurface(p.source, params.Width, params.Height, p.opts.Interpolation)
	if err != nil {
		return domain.ValidationError("invalid resize parameters", err)
	}

	p.params = params
	p.surface = surface

	quality := params.Quality
	name := p.opts.FileName
	p.export = func() (domain.OutputFile, error) {
		var buf bytes.Buffer
		if err := EncodeJPEG(&buf, surface, quality); err != nil {
			return domain.OutputFile{}, domain.ConversionError("cannot encode image", err)
		}
		return domain.OutputFile{
			Name:        name,
			ContentType: domain.MediaTypeJPEG,
			Data:        buf.Bytes(),
		}, nil
	}

	p.logger.Debug().
		Int("width", params.Width).
		Int("height", params.Height).
		Float64("quality", quality).
		Msg("Surface recomputed")
	return nil
}

// checkArea rejects dimensions whose pixel count exceeds the limit. The
// product is computed without overflow.
func (p *Pipeline) checkArea(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if int64(width) > p.opts.MaxPixels/int64(height) {
		return domain.ValidationError(
			fmt.Sprintf("%dx%d exceeds the limit of %d pixels", width, height, p.opts.MaxPixels), nil)
	}
	return nil
}

// Export runs the currently bound export action
func (p *Pipeline) Export() (domain.OutputFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.export == nil {
		return domain.OutputFile{}, domain.ValidationError("nothing to export, load an image first", nil)
	}
	return p.export()
}

// Ready reports whether the export action is enabled
func (p *Pipeline) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.export != nil
}

// Params returns the current parameter snapshot
func (p *Pipeline) Params() Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

// Surface returns the current drawing surface, or nil before the first render
func (p *Pipeline) Surface() image.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.surface == nil {
		return nil
	}
	return p.surface
}

// parseParams turns raw inputs into a Params snapshot. Width and height must
// be positive integers; a quality that is not a number falls back to the
// default, a numeric one is clamped into [0,1].
func parseParams(cur Params, defaultQuality float64, width, height, quality string) (Params, error) {
	next := cur

	if s := strings.TrimSpace(width); s != "" {
		w, err := strconv.Atoi(s)
		if err != nil || w <= 0 {
			return cur, domain.ValidationError(fmt.Sprintf("width must be a positive integer, got %q", width), err)
		}
		next.Width = w
	}

	if s := strings.TrimSpace(height); s != "" {
		h, err := strconv.Atoi(s)
		if err != nil || h <= 0 {
			return cur, domain.ValidationError(fmt.Sprintf("height must be a positive integer, got %q", height), err)
		}
		next.Height = h
	}

	if s := strings.TrimSpace(quality); s != "" {
		q, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(q) {
			next.Quality = defaultQuality
		} else {
			next.Quality = ClampQuality(q)
		}
	}

	return next, nil
}

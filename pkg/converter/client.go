// Package converter is the library entry point for resizing images and
// converting between images, PDF and DOCX.
package converter

import (
	"context"

	"github.com/spherical/file-converter/internal/config"
	"github.com/spherical/file-converter/internal/convert"
	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/download"
	"github.com/spherical/file-converter/internal/observability"
	"github.com/spherical/file-converter/internal/raster"
)

// Re-export domain types for the public API
type (
	InputFile   = domain.InputFile
	OutputFile  = domain.OutputFile
	StreamEvent = domain.StreamEvent
	EventType   = domain.EventType
	DomainError = domain.DomainError
	Sink        = domain.Sink
	Config      = config.Config
)

// Re-export conversion types
type (
	Kind     = convert.Kind
	Result   = convert.Result
	Pipeline = raster.Pipeline
	Params   = raster.Params
)

// Conversion kinds
const (
	KindImagesToPDF  = convert.KindImagesToPDF
	KindImagesToDOCX = convert.KindImagesToDOCX
	KindPDFToImages  = convert.KindPDFToImages
	KindDOCXToImages = convert.KindDOCXToImages
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventFileProcessing = domain.EventFileProcessing
	EventOutputReady    = domain.EventOutputReady
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// ParseKind maps a tag such as "pdf2img" to its Kind
func ParseKind(tag string) (Kind, error) {
	return convert.ParseKind(tag)
}

// StatusMessage renders a result as the line shown to users
func StatusMessage(r Result) string {
	return convert.StatusMessage(r)
}

// ReadFile loads an input file from disk
func ReadFile(path string) (InputFile, error) {
	return domain.ReadInputFile(path)
}

// Client is the main entry point for the converter library
type Client struct {
	cfg        *config.Config
	dispatcher *convert.Dispatcher
	logger     *observability.Logger
}

// NewClient creates a client from the environment (.env and overrides)
func NewClient() (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, domain.ConfigError("cannot load configuration", err)
	}
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a client with custom configuration
func NewClientWithConfig(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	return &Client{
		cfg:        cfg,
		dispatcher: convert.NewDefaultDispatcher(cfg, logger),
		logger:     logger,
	}, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// NewPipeline creates an empty resize pipeline configured like the client
func (c *Client) NewPipeline() (*Pipeline, error) {
	interp, err := raster.ParseInterpolation(c.cfg.Resize.Interpolation)
	if err != nil {
		return nil, err
	}
	return raster.NewPipeline(raster.Options{
		FileName:       c.cfg.Resize.FileName,
		DefaultQuality: c.cfg.Resize.DefaultQuality,
		Interpolation:  interp,
		MaxPixels:      c.cfg.Resize.MaxPixels,
		Logger:         c.logger,
	}), nil
}

// Resize loads an image, applies the raw width, height and quality inputs
// (empty keeps the current value) and returns the exported JPEG
func (c *Client) Resize(data []byte, width, height, quality string) (OutputFile, error) {
	p, err := c.NewPipeline()
	if err != nil {
		return OutputFile{}, err
	}
	if err := p.LoadBytes(data); err != nil {
		return OutputFile{}, err
	}
	if err := p.Update(width, height, quality); err != nil {
		return OutputFile{}, err
	}
	return p.Export()
}

// Convert runs one conversion and delivers the outputs to sink
func (c *Client) Convert(ctx context.Context, kind Kind, files []InputFile, sink Sink) Result {
	return c.dispatcher.Dispatch(ctx, kind, files, sink, nil)
}

// ConvertToMemory runs one conversion and keeps the outputs in the result
func (c *Client) ConvertToMemory(ctx context.Context, kind Kind, files []InputFile) Result {
	return c.dispatcher.Dispatch(ctx, kind, files, download.NewMemorySink(), nil)
}

// ConvertToDir runs one conversion and writes the outputs into dir
func (c *Client) ConvertToDir(ctx context.Context, kind Kind, files []InputFile, dir string) (Result, error) {
	sink, err := download.NewDirSink(dir, c.logger)
	if err != nil {
		return Result{}, err
	}
	return c.dispatcher.Dispatch(ctx, kind, files, sink, nil), nil
}

// Stream runs a conversion in the background. Events stream on the first
// channel, which is closed before the single result is sent on the second.
func (c *Client) Stream(ctx context.Context, kind Kind, files []InputFile, sink Sink) (<-chan StreamEvent, <-chan Result) {
	eventCh := make(chan StreamEvent, 100)
	resultCh := make(chan Result, 1)

	go func() {
		res := c.dispatcher.Dispatch(ctx, kind, files, sink, eventCh)
		close(eventCh)
		resultCh <- res
		close(resultCh)
	}()

	return eventCh, resultCh
}

package convert

import (
	"github.com/spherical/file-converter/internal/config"
	"github.com/spherical/file-converter/internal/docx"
	"github.com/spherical/file-converter/internal/fetch"
	"github.com/spherical/file-converter/internal/observability"
	"github.com/spherical/file-converter/internal/pdf"
)

// DefaultComponents builds every routine collaborator from configuration
func DefaultComponents(cfg *config.Config, logger *observability.Logger) Components {
	placement := pdf.Placement{
		X:      cfg.PDF.ImageX,
		Y:      cfg.PDF.ImageY,
		Width:  cfg.PDF.ImageWidth,
		Height: cfg.PDF.ImageHeight,
	}
	retry := fetch.RetryConfig{
		MaxRetries:     cfg.Fetch.MaxRetries,
		InitialBackoff: cfg.Fetch.InitialBackoff,
		MaxBackoff:     cfg.Fetch.MaxBackoff,
	}
	markup := docx.MarkupOptions{
		AllowRemote:   cfg.Fetch.AllowRemote,
		MaxPartBytes:  cfg.DOCX.MaxPartBytes,
		MaxMediaBytes: cfg.DOCX.MaxMediaBytes,
	}

	return Components{
		PDFBuilder:  pdf.NewBuilder(cfg.PDF.PageSize, placement, logger),
		DOCXBuilder: docx.NewBuilder(cfg.DOCX.ImageWidthPx, cfg.DOCX.ImageHeightPx, cfg.DOCX.AllowedTypes, logger),
		PDFRenderer: pdf.NewConverter(cfg.PDF.RenderScale, logger),
		DOCXImages:  docx.NewExtractor(markup, logger),
		Fetcher:     fetch.NewFetcher(cfg.Fetch.Timeout, retry, logger).WithRemote(cfg.Fetch.AllowRemote),
	}
}

// NewDefaultDispatcher creates a dispatcher wired from configuration
func NewDefaultDispatcher(cfg *config.Config, logger *observability.Logger) *Dispatcher {
	return NewDispatcher(DefaultComponents(cfg, logger), cfg.Fetch.MaxParallel, logger)
}

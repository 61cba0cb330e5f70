package docx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/observability"
)

// ImageFileName names the i-th discovered image, 1-indexed
func ImageFileName(i int) string {
	return fmt.Sprintf("docx_img%d.png", i)
}

// Extractor finds the images a DOCX shows by converting it to markup and
// scanning the markup for <img> elements.
type Extractor struct {
	opts   MarkupOptions
	logger *observability.Logger
}

// NewExtractor creates a DOCX image locator
func NewExtractor(opts MarkupOptions, logger *observability.Logger) *Extractor {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Extractor{opts: opts.withDefaults(), logger: logger.WithComponent("docx-extractor")}
}

// Locate returns every image source in discovery order. A document without
// images yields an empty slice and no error.
func (e *Extractor) Locate(ctx context.Context, file domain.InputFile) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(file.Data) == 0 {
		return nil, domain.IOError("file is empty", nil).WithFile(file.Name)
	}

	markup, err := ToHTML(file.Data, e.opts)
	if errors.Is(err, ErrPartTooLarge) {
		return nil, domain.IOError("part too large", err).WithFile(file.Name)
	}
	if err != nil {
		return nil, domain.IOError("cannot read document", err).WithFile(file.Name)
	}

	sources, err := ImageSources(markup)
	if err != nil {
		return nil, domain.ConversionError("cannot scan document markup", err).WithFile(file.Name)
	}

	e.logger.Debug().
		Str("file", file.Name).
		Int("images", len(sources)).
		Msg("Document scanned")

	return sources, nil
}

// ImageSources lists the src of every <img> in the markup, in document order
func ImageSources(markup string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	var sources []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			sources = append(sources, src)
		}
	})
	return sources, nil
}

// Package pdf builds PDFs from images and rasterizes PDF pages.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/observability"
	"github.com/spherical/file-converter/internal/raster"
)

// pointsPerInch is the PDF user-space resolution; scale 1 renders at 72 DPI
const pointsPerInch = 72.0

// pageSource is an opened paged document
type pageSource interface {
	NumPage() int
	// RenderPage rasterizes a 0-indexed page at the given DPI
	RenderPage(page int, dpi float64) (image.Image, error)
	Close() error
}

// Converter implements PDF to image conversion, one PNG per page
type Converter struct {
	scale     float64
	validator *Validator
	open      func(data []byte) (pageSource, error)
	logger    *observability.Logger
}

// NewConverter creates a new PDF converter rendering at the given scale
func NewConverter(scale float64, logger *observability.Logger) *Converter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Converter{
		scale:     scale,
		validator: NewValidator(),
		open:      openDocument,
		logger:    logger.WithComponent("pdf-converter"),
	}
}

// Available reports whether this build can rasterize PDFs
func Available() bool {
	return rendererAvailable
}

// Available reports whether this converter can rasterize PDFs
func (c *Converter) Available() bool {
	return rendererAvailable
}

// PageFileName names the image of a 1-indexed page
func PageFileName(page int) string {
	return fmt.Sprintf("page%d.png", page)
}

// Render rasterizes every page in order and hands each PNG to deliver as
// soon as it is encoded. Pages delivered before a failure stay delivered.
func (c *Converter) Render(ctx context.Context, file domain.InputFile, deliver func(domain.OutputFile) error) (int, error) {
	if err := c.validator.ValidateScale(c.scale); err != nil {
		return 0, err
	}
	if err := c.validator.ValidatePDF(file); err != nil {
		return 0, err
	}

	doc, err := c.open(file.Data)
	if err != nil {
		if domain.IsType(err, domain.ErrorTypeMissingDependency) {
			return 0, err
		}
		return 0, domain.IOError("cannot open PDF", err).WithFile(file.Name)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return 0, domain.ValidationError("PDF has no pages", nil).WithFile(file.Name)
	}

	dpi := pointsPerInch * c.scale
	delivered := 0

	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		default:
		}

		img, err := doc.RenderPage(pageNum-1, dpi)
		if err != nil {
			return delivered, domain.ConversionError(fmt.Sprintf("failed to render page %d", pageNum), err).WithFile(file.Name)
		}

		var buf bytes.Buffer
		if err := raster.EncodePNG(&buf, img); err != nil {
			return delivered, domain.ConversionError(fmt.Sprintf("failed to encode page %d", pageNum), err).WithFile(file.Name)
		}

		out := domain.OutputFile{
			Name:        PageFileName(pageNum),
			ContentType: domain.MediaTypePNG,
			Data:        buf.Bytes(),
		}
		if err := deliver(out); err != nil {
			return delivered, domain.IOError(fmt.Sprintf("failed to deliver page %d", pageNum), err).WithFile(out.Name)
		}
		delivered++

		bounds := img.Bounds()
		c.logger.Debug().
			Int("page", pageNum).
			Int("pages", pageCount).
			Int("width", bounds.Dx()).
			Int("height", bounds.Dy()).
			Msg("Page rendered")
	}

	return delivered, nil
}

package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/go-pdf/fpdf"
	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/observability"
	"github.com/spherical/file-converter/internal/raster"
)

// OutputName is the file name of the document produced from images
const OutputName = "images.pdf"

// Placement is where each image lands on its page, in millimetres.
// The image is stretched to Width x Height; its aspect ratio is not kept.
type Placement struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// DefaultPlacement puts a 180x160mm image 10mm from the top-left corner
func DefaultPlacement() Placement {
	return Placement{X: 10, Y: 10, Width: 180, Height: 160}
}

// Builder assembles one PDF with one page per input image using fpdf
type Builder struct {
	pageSize  string
	placement Placement
	logger    *observability.Logger
}

// NewBuilder creates a PDF builder for the given page size (e.g. "A4")
func NewBuilder(pageSize string, placement Placement, logger *observability.Logger) *Builder {
	if pageSize == "" {
		pageSize = "A4"
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Builder{
		pageSize:  pageSize,
		placement: placement,
		logger:    logger.WithComponent("pdf-builder"),
	}
}

// Build places every file, in order, on its own page
func (b *Builder) Build(ctx context.Context, files []domain.InputFile) (domain.OutputFile, error) {
	doc := fpdf.New("P", "mm", b.pageSize, "")

	for i, file := range files {
		select {
		case <-ctx.Done():
			return domain.OutputFile{}, ctx.Err()
		default:
		}

		data, imageType, err := embeddable(file)
		if err != nil {
			return domain.OutputFile{}, domain.IOError("cannot read image", err).WithFile(file.Name)
		}

		// fpdf starts without pages, so every file including the first
		// gets a fresh one.
		doc.AddPage()

		name := fmt.Sprintf("image-%d", i+1)
		opts := fpdf.ImageOptions{ImageType: imageType}
		doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if doc.Err() {
			return domain.OutputFile{}, domain.IOError("cannot embed image", doc.Error()).WithFile(file.Name)
		}
		doc.ImageOptions(name, b.placement.X, b.placement.Y, b.placement.Width, b.placement.Height, false, opts, 0, "")

		b.logger.Debug().
			Str("file", file.Name).
			Int("page", i+1).
			Str("type", imageType).
			Msg("Image placed")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return domain.OutputFile{}, domain.PackagingError("cannot write PDF", err)
	}

	return domain.OutputFile{
		Name:        OutputName,
		ContentType: domain.MediaTypePDF,
		Data:        buf.Bytes(),
	}, nil
}

// embeddable returns image bytes fpdf can embed directly. JPEG passes
// through untouched; every other decodable format becomes an 8-bit PNG.
func embeddable(file domain.InputFile) ([]byte, string, error) {
	if len(file.Data) == 0 {
		return nil, "", fmt.Errorf("file is empty")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return nil, "", fmt.Errorf("unrecognized image data: %w", err)
	}
	if format == "jpeg" {
		return file.Data, "JPG", nil
	}

	img, _, err := raster.DecodeBytes(file.Data)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := raster.EncodePNG(&buf, raster.ToNRGBA(img)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "PNG", nil
}

// Package docx packages images into Word documents and extracts the images
// a Word document references.
package docx

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/observability"
)

// OutputName is the file name of the document produced from images
const OutputName = "images.docx"

// DefaultAllowedTypes are the declared media types accepted as images
var DefaultAllowedTypes = []string{domain.MediaTypePNG, domain.MediaTypeJPEG}

// Builder assembles one DOCX with one image paragraph per input file
type Builder struct {
	widthPx  int
	heightPx int
	allowed  map[string]struct{}
	logger   *observability.Logger
}

// NewBuilder creates a DOCX builder. Every image is shown at widthPx x heightPx.
func NewBuilder(widthPx, heightPx int, allowedTypes []string, logger *observability.Logger) *Builder {
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = struct{}{}
	}

	return &Builder{
		widthPx:  widthPx,
		heightPx: heightPx,
		allowed:  allowed,
		logger:   logger.WithComponent("docx-builder"),
	}
}

// Allowed reports whether a declared media type may be embedded
func (b *Builder) Allowed(contentType string) bool {
	_, ok := b.allowed[strings.ToLower(contentType)]
	return ok
}

// Build checks and reads every file in order and packages the result.
// The first disallowed or unreadable file aborts the build.
func (b *Builder) Build(ctx context.Context, files []domain.InputFile) (domain.OutputFile, error) {
	parts := make([]mediaPart, 0, len(files))

	for i, file := range files {
		select {
		case <-ctx.Done():
			return domain.OutputFile{}, ctx.Err()
		default:
		}

		if !b.Allowed(file.ContentType) {
			return domain.OutputFile{}, domain.UnsupportedFormatError(
				fmt.Sprintf("unsupported image format %q", file.ContentType), nil).WithFile(file.Name)
		}

		ext, err := imageExtension(file.Data)
		if err != nil {
			return domain.OutputFile{}, domain.IOError("cannot read image", err).WithFile(file.Name)
		}

		n := i + 1
		parts = append(parts, mediaPart{
			RelID:  fmt.Sprintf("rId%d", n),
			Target: fmt.Sprintf("media/image%d.%s", n, ext),
			Data:   file.Data,
			Name:   file.Name,
			CX:     int64(b.widthPx) * emuPerPixel,
			CY:     int64(b.heightPx) * emuPerPixel,
			DocPr:  n,
		})

		b.logger.Debug().
			Str("file", file.Name).
			Int("index", n).
			Msg("Image added")
	}

	data, err := writePackage(parts)
	if err != nil {
		return domain.OutputFile{}, domain.PackagingError("cannot package DOCX", err)
	}

	return domain.OutputFile{
		Name:        OutputName,
		ContentType: domain.MediaTypeDOCX,
		Data:        data,
	}, nil
}

// imageExtension sniffs the payload and names the media part after it
func imageExtension(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("file is empty")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unrecognized image data: %w", err)
	}
	switch format {
	case "png", "jpeg":
		return format, nil
	default:
		return "", fmt.Errorf("cannot embed %s data", format)
	}
}

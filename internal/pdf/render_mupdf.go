//go:build !nomupdf

package pdf

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

const rendererAvailable = true

// fitzDocument adapts a MuPDF document to pageSource
type fitzDocument struct {
	doc *fitz.Document
}

func openDocument(data []byte) (pageSource, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return &fitzDocument{doc: doc}, nil
}

func (d *fitzDocument) NumPage() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(page int, dpi float64) (image.Image, error) {
	return d.doc.ImageDPI(page, dpi)
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}

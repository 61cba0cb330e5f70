package pdf

import (
	"bytes"
	"fmt"

	"github.com/spherical/file-converter/internal/domain"
)

// pdfMagic must appear near the start of every PDF file
var pdfMagic = []byte("%PDF-")

// magicWindow is how far into the file the header may start; some writers
// prepend junk before it.
const magicWindow = 1024

// Validator provides input validation for PDF files
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePDF checks that the file is non-empty and carries a PDF header
func (v *Validator) ValidatePDF(file domain.InputFile) error {
	if len(file.Data) == 0 {
		return domain.ValidationError("file is empty", nil).WithFile(file.Name)
	}

	window := file.Data
	if len(window) > magicWindow {
		window = window[:magicWindow]
	}
	if !bytes.Contains(window, pdfMagic) {
		return domain.UnsupportedFormatError("file is not a PDF", nil).WithFile(file.Name)
	}

	return nil
}

// ValidateScale validates the render upscaling factor
func (v *Validator) ValidateScale(scale float64) error {
	if scale <= 0 || scale > 10 {
		return domain.ValidationError(fmt.Sprintf("render scale must be in (0, 10], got %v", scale), nil)
	}
	return nil
}

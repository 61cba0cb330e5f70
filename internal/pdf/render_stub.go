//go:build nomupdf

package pdf

import "github.com/spherical/file-converter/internal/domain"

const rendererAvailable = false

// openDocument is a stub for builds without MuPDF.
func openDocument(_ []byte) (pageSource, error) {
	return nil, domain.MissingDependencyError("PDF renderer", nil)
}

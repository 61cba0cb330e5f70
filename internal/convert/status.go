package convert

import (
	"errors"
	"fmt"

	"github.com/spherical/file-converter/internal/domain"
)

// NoticeNoImages is reported when a document holds no images
const NoticeNoImages = "No images found in DOCX."

var successMessages = map[Kind]string{
	KindImagesToPDF:  "PDF created!",
	KindImagesToDOCX: "DOCX created!",
	KindPDFToImages:  "Images extracted from PDF!",
	KindDOCXToImages: "Images extracted from DOCX!",
}

var packagingMessages = map[Kind]string{
	KindImagesToPDF:  "Failed to create PDF file.",
	KindImagesToDOCX: "Failed to create DOCX file.",
}

// StatusMessage turns a dispatch result into the line shown to the user
func StatusMessage(r Result) string {
	if r.Err == nil {
		if r.Notice != "" {
			return r.Notice
		}
		if msg, ok := successMessages[r.Kind]; ok {
			return msg
		}
		return "Done."
	}

	err := r.Err
	switch {
	case errors.Is(err, ErrNoFiles):
		return "Please select files."
	case errors.Is(err, ErrUnsupportedKind):
		return UnsupportedKindMessage(r.Kind.String())
	case r.Failed > 0:
		return fmt.Sprintf("Failed to extract %d of %d images.", r.Failed, r.Attempted)
	}

	switch err.Type {
	case domain.ErrorTypeUnsupportedFormat:
		if r.Kind.takesImages() {
			return fmt.Sprintf("Unsupported image format: %s", err.File)
		}
		return fmt.Sprintf("Unsupported file format: %s", err.File)
	case domain.ErrorTypeIO:
		if r.Kind.takesImages() {
			return fmt.Sprintf("Error reading image: %s", err.File)
		}
		return fmt.Sprintf("Error reading file: %s", err.File)
	case domain.ErrorTypePackaging:
		if msg, ok := packagingMessages[r.Kind]; ok {
			return msg
		}
	case domain.ErrorTypeMissingDependency:
		return fmt.Sprintf("%s not loaded.", err.Message)
	}

	return fmt.Sprintf("Conversion failed: %s", errorDetail(err))
}

// UnsupportedKindMessage is shown for a tag that names no conversion
func UnsupportedKindMessage(tag string) string {
	return fmt.Sprintf("Unsupported conversion type: %s", tag)
}

func errorDetail(err *domain.DomainError) string {
	detail := err.Message
	if err.File != "" {
		detail = fmt.Sprintf("%s (%s)", detail, err.File)
	}
	if err.Err != nil {
		detail = fmt.Sprintf("%s: %v", detail, err.Err)
	}
	return detail
}

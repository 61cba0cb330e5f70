package convert

import (
	"fmt"
	"strings"

	"github.com/spherical/file-converter/internal/domain"
)

// Kind selects one conversion routine
type Kind int

const (
	KindImagesToPDF Kind = iota + 1
	KindImagesToDOCX
	KindPDFToImages
	KindDOCXToImages
)

var kindTags = map[Kind]string{
	KindImagesToPDF:  "img2pdf",
	KindImagesToDOCX: "img2docx",
	KindPDFToImages:  "pdf2img",
	KindDOCXToImages: "docx2img",
}

var kindDescriptions = map[Kind]string{
	KindImagesToPDF:  "Images to PDF, one page per image",
	KindImagesToDOCX: "Images to DOCX, one paragraph per image",
	KindPDFToImages:  "PDF to images, one PNG per page",
	KindDOCXToImages: "DOCX to images, every image the document shows",
}

// AllKinds returns every kind in menu order
func AllKinds() []Kind {
	return []Kind{KindImagesToPDF, KindImagesToDOCX, KindPDFToImages, KindDOCXToImages}
}

// ParseKind maps a tag such as "img2pdf" to its Kind
func ParseKind(tag string) (Kind, error) {
	t := strings.ToLower(strings.TrimSpace(tag))
	for k, name := range kindTags {
		if name == t {
			return k, nil
		}
	}
	return 0, domain.ValidationError(fmt.Sprintf("unsupported conversion type %q", tag), ErrUnsupportedKind)
}

// String returns the tag of the kind
func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Description is a one-line human summary
func (k Kind) Description() string {
	return kindDescriptions[k]
}

// Valid reports whether k is one of the defined kinds
func (k Kind) Valid() bool {
	_, ok := kindTags[k]
	return ok
}

// takesImages reports whether the routine consumes images rather than a document
func (k Kind) takesImages() bool {
	return k == KindImagesToPDF || k == KindImagesToDOCX
}

package docx

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
)

// relationship is one entry of word/_rels/document.xml.rels
type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationships struct {
	Items []relationship `xml:"Relationship"`
}

const (
	defaultMaxPartBytes  = 32 << 20
	defaultMaxMediaBytes = 256 << 20
)

// ErrPartTooLarge is returned when a package part, or the media inlined into
// the markup, decompresses past its limit.
var ErrPartTooLarge = errors.New("part too large")

// MarkupOptions bounds what ToHTML reads from a package.
type MarkupOptions struct {
	// AllowRemote emits linked (TargetMode="External") pictures as <img>.
	// Off by default, linked pictures are dropped.
	AllowRemote bool
	// MaxPartBytes caps the decompressed size of any single part.
	MaxPartBytes int64
	// MaxMediaBytes caps the total media inlined as data URLs.
	MaxMediaBytes int64
}

// DefaultMarkupOptions returns the limits used when none are configured
func DefaultMarkupOptions() MarkupOptions {
	return MarkupOptions{
		MaxPartBytes:  defaultMaxPartBytes,
		MaxMediaBytes: defaultMaxMediaBytes,
	}
}

func (o MarkupOptions) withDefaults() MarkupOptions {
	if o.MaxPartBytes <= 0 {
		o.MaxPartBytes = defaultMaxPartBytes
	}
	if o.MaxMediaBytes <= 0 {
		o.MaxMediaBytes = defaultMaxMediaBytes
	}
	return o
}

// ToHTML converts the main document part of a DOCX into simple HTML markup.
// Paragraphs become <p>, text runs are escaped and embedded pictures become
// <img> elements with data URLs. Linked pictures are kept as their URL only
// when opts.AllowRemote is set.
func ToHTML(data []byte, opts MarkupOptions) (string, error) {
	opts = opts.withDefaults()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open package: %w", err)
	}

	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[strings.TrimPrefix(f.Name, "/")] = f
	}

	doc, ok := parts[partDocument]
	if !ok {
		return "", fmt.Errorf("package has no %s", partDocument)
	}

	rels := map[string]relationship{}
	if f, ok := parts[partDocumentRels]; ok {
		raw, err := readPart(f, opts.MaxPartBytes)
		if err != nil {
			return "", err
		}
		var parsed relationships
		if err := xml.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("parse %s: %w", partDocumentRels, err)
		}
		for _, r := range parsed.Items {
			rels[r.ID] = r
		}
	}

	if doc.UncompressedSize64 > uint64(opts.MaxPartBytes) {
		return "", fmt.Errorf("%s: %w", partDocument, ErrPartTooLarge)
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", partDocument, err)
	}
	defer rc.Close()

	body := &limitedReader{r: rc, n: opts.MaxPartBytes}
	w := &markupWriter{parts: parts, rels: rels, opts: opts}
	if err := w.convert(xml.NewDecoder(body)); err != nil {
		return "", fmt.Errorf("convert %s: %w", partDocument, err)
	}
	return w.out.String(), nil
}

type markupWriter struct {
	parts map[string]*zip.File
	rels  map[string]relationship
	opts  MarkupOptions
	media int64
	out   strings.Builder
}

func (w *markupWriter) convert(dec *xml.Decoder) error {
	inText := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsWordML && t.Name.Local == "p":
				w.out.WriteString("<p>")
			case t.Name.Space == nsWordML && t.Name.Local == "t":
				inText = true
			case t.Name.Space == nsWordML && (t.Name.Local == "br" || t.Name.Local == "cr"):
				w.out.WriteString("<br/>")
			case t.Name.Space == nsWordML && t.Name.Local == "tab":
				w.out.WriteString("\t")
			case t.Name.Space == nsDrawing && t.Name.Local == "blip":
				id := attr(t, nsRels, "embed")
				if id == "" {
					id = attr(t, nsRels, "link")
				}
				if err := w.image(id); err != nil {
					return err
				}
			case t.Name.Space == nsVML && t.Name.Local == "imagedata":
				if err := w.image(attr(t, nsRels, "id")); err != nil {
					return err
				}
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == nsWordML && t.Name.Local == "p":
				w.out.WriteString("</p>")
			case t.Name.Space == nsWordML && t.Name.Local == "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				w.out.WriteString(html.EscapeString(string(t)))
			}
		}
	}
}

// image writes an <img> for the relationship. Unknown ids, unreadable parts
// and, unless allowed, linked pictures are skipped; only exceeding a size
// limit is an error.
func (w *markupWriter) image(relID string) error {
	rel, ok := w.rels[relID]
	if relID == "" || !ok {
		return nil
	}

	var src string
	if strings.EqualFold(rel.TargetMode, "External") {
		if !w.opts.AllowRemote {
			return nil
		}
		src = rel.Target
	} else {
		name := resolveTarget(rel.Target)
		f, ok := w.parts[name]
		if !ok {
			return nil
		}
		data, err := readPart(f, w.opts.MaxPartBytes)
		if errors.Is(err, ErrPartTooLarge) {
			return err
		}
		if err != nil {
			return nil
		}
		w.media += int64(len(data))
		if w.media > w.opts.MaxMediaBytes {
			return fmt.Errorf("inlined media: %w", ErrPartTooLarge)
		}
		src = dataURL(mediaType(name, data), data)
	}

	fmt.Fprintf(&w.out, `<img src="%s" />`, html.EscapeString(src))
	return nil
}

func attr(el xml.StartElement, space, local string) string {
	for _, a := range el.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// resolveTarget turns a relationship target into a package part name
func resolveTarget(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Join("word", target)
}

func mediaType(name string, data []byte) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

func dataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// readPart reads a whole part, refusing anything that decompresses past max.
// The declared size is checked first, the limited read catches a header that
// lies about it.
func readPart(f *zip.File, max int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(max) {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrPartTooLarge)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, max+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrPartTooLarge)
	}
	return data, nil
}

// limitedReader fails with ErrPartTooLarge once more than n bytes are read
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, ErrPartTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n, ErrPartTooLarge
	}
	return n, err
}

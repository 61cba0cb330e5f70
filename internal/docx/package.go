package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"
)

// OOXML part names and namespaces shared by the builder and the markup reader
const (
	partContentTypes = "[Content_Types].xml"
	partRootRels     = "_rels/.rels"
	partDocument     = "word/document.xml"
	partDocumentRels = "word/_rels/document.xml.rels"

	nsWordML    = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsDrawing   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRels      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsVML       = "urn:schemas-microsoft-com:vml"
	relImage    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relOffice   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	emuPerPixel = 9525
)

// mediaPart is one embedded image inside the package
type mediaPart struct {
	RelID  string
	Target string // relative to word/
	Data   []byte
	Name   string
	CX, CY int64
	DocPr  int
}

var packageTemplates = template.Must(template.New("docx").Funcs(template.FuncMap{
	"xml": xmlEscape,
}).Parse(`
{{define "content_types"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="jpeg" ContentType="image/jpeg"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>{{end}}
{{define "root_rels"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relOffice + `" Target="word/document.xml"/>
</Relationships>{{end}}
{{define "document_rels"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
{{- range .}}
<Relationship Id="{{.RelID}}" Type="` + relImage + `" Target="{{.Target}}"/>
{{- end}}
</Relationships>{{end}}
{{define "document"}}<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="` + nsWordML + `" xmlns:r="` + nsRels + `" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:a="` + nsDrawing + `" xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">
<w:body>
{{- range .}}
<w:p><w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0"><wp:extent cx="{{.CX}}" cy="{{.CY}}"/><wp:docPr id="{{.DocPr}}" name="{{xml .Name}}"/><a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:pic><pic:nvPicPr><pic:cNvPr id="{{.DocPr}}" name="{{xml .Name}}"/><pic:cNvPicPr/></pic:nvPicPr><pic:blipFill><a:blip r:embed="{{.RelID}}"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill><pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="{{.CX}}" cy="{{.CY}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>
{{- end}}
<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>
</w:body>
</w:document>{{end}}
`))

func xmlEscape(s string) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// writePackage zips a single-section document with one image paragraph per part
func writePackage(parts []mediaPart) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	render := func(name, tmpl string, data any) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if err := packageTemplates.ExecuteTemplate(w, tmpl, data); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		return nil
	}

	if err := render(partContentTypes, "content_types", nil); err != nil {
		return nil, err
	}
	if err := render(partRootRels, "root_rels", nil); err != nil {
		return nil, err
	}
	if err := render(partDocument, "document", parts); err != nil {
		return nil, err
	}
	if err := render(partDocumentRels, "document_rels", parts); err != nil {
		return nil, err
	}

	for _, p := range parts {
		w, err := zw.Create("word/" + p.Target)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.Data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/file-converter/internal/domain"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 6, 8)), nil))
	return buf.Bytes()
}

func zipParts(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	parts := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		parts[f.Name] = b
	}
	return parts
}

// rawDocx packages a hand-written document body and relationships
func rawDocx(t *testing.T, body, rels string, media map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name string, data []byte) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}

	write(partDocument, []byte(`<?xml version="1.0"?>
<w:document xmlns:w="`+nsWordML+`" xmlns:r="`+nsRels+`" xmlns:a="`+nsDrawing+`" xmlns:v="`+nsVML+`"><w:body>`+body+`</w:body></w:document>`))
	write(partDocumentRels, []byte(`<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+rels+`</Relationships>`))
	for name, data := range media {
		write(name, data)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestBuilder_PackagesOneParagraphPerImage(t *testing.T) {
	b := NewBuilder(400, 300, nil, nil)
	files := []domain.InputFile{
		{Name: "a.png", ContentType: domain.MediaTypePNG, Data: pngBytes(t)},
		{Name: "b.jpg", ContentType: domain.MediaTypeJPEG, Data: jpegBytes(t)},
	}

	out, err := b.Build(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, OutputName, out.Name)
	assert.Equal(t, domain.MediaTypeDOCX, out.ContentType)

	parts := zipParts(t, out.Data)
	for _, name := range []string{partContentTypes, partRootRels, partDocument, partDocumentRels, "word/media/image1.png", "word/media/image2.jpeg"} {
		assert.Contains(t, parts, name)
	}

	doc := string(parts[partDocument])
	assert.Equal(t, 2, strings.Count(doc, "<a:blip "))
	assert.Equal(t, 2, strings.Count(doc, "<w:p>"))
	// 400x300 px at 9525 EMU per pixel
	assert.Contains(t, doc, `cx="3810000" cy="2857500"`)
	assert.Equal(t, files[0].Data, parts["word/media/image1.png"])
}

func TestBuilder_DisallowedTypeAborts(t *testing.T) {
	b := NewBuilder(400, 300, nil, nil)
	files := []domain.InputFile{
		{Name: "a.png", ContentType: domain.MediaTypePNG, Data: pngBytes(t)},
		{Name: "anim.gif", ContentType: "image/gif", Data: []byte("GIF89a")},
		{Name: "c.png", ContentType: domain.MediaTypePNG, Data: pngBytes(t)},
	}

	out, err := b.Build(context.Background(), files)
	assert.Empty(t, out.Data)

	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorTypeUnsupportedFormat, de.Type)
	assert.Equal(t, "anim.gif", de.File)
}

func TestBuilder_UnreadableImageAborts(t *testing.T) {
	b := NewBuilder(400, 300, nil, nil)
	files := []domain.InputFile{
		{Name: "broken.png", ContentType: domain.MediaTypePNG, Data: []byte("garbage")},
	}

	_, err := b.Build(context.Background(), files)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorTypeIO, de.Type)
	assert.Equal(t, "broken.png", de.File)
}

func TestBuilder_AllowedIsCaseInsensitive(t *testing.T) {
	b := NewBuilder(400, 300, []string{"IMAGE/PNG"}, nil)
	assert.True(t, b.Allowed("image/png"))
	assert.False(t, b.Allowed("image/jpeg"))
}

func TestToHTML_BuiltDocument(t *testing.T) {
	b := NewBuilder(400, 300, nil, nil)
	out, err := b.Build(context.Background(), []domain.InputFile{
		{Name: "a.png", ContentType: domain.MediaTypePNG, Data: pngBytes(t)},
		{Name: "b.jpg", ContentType: domain.MediaTypeJPEG, Data: jpegBytes(t)},
	})
	require.NoError(t, err)

	markup, err := ToHTML(out.Data, DefaultMarkupOptions())
	require.NoError(t, err)

	sources, err := ImageSources(markup)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.True(t, strings.HasPrefix(sources[0], "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(sources[1], "data:image/jpeg;base64,"))
}

func TestToHTML_TextAndLinkedImages(t *testing.T) {
	body := `<w:p><w:r><w:t>Fish &amp; chips &lt;3</w:t></w:r><w:r><w:br/></w:r></w:p>` +
		`<w:p><w:r><a:blip r:link="rId7"/></w:r></w:p>` +
		`<w:p><w:r><v:imagedata r:id="rId8"/></w:r></w:p>` +
		`<w:p><w:r><a:blip r:embed="rIdMissing"/></w:r></w:p>`
	rels := `<Relationship Id="rId7" Type="` + relImage + `" Target="https://example.com/logo.png" TargetMode="External"/>` +
		`<Relationship Id="rId8" Type="` + relImage + `" Target="media/old.png"/>`
	data := rawDocx(t, body, rels, map[string][]byte{"word/media/old.png": pngBytes(t)})

	t.Run("linked pictures dropped by default", func(t *testing.T) {
		markup, err := ToHTML(data, DefaultMarkupOptions())
		require.NoError(t, err)
		assert.Contains(t, markup, "<p>Fish &amp; chips &lt;3<br/></p>")
		assert.NotContains(t, markup, "example.com")

		sources, err := ImageSources(markup)
		require.NoError(t, err)
		require.Len(t, sources, 1)
		assert.True(t, strings.HasPrefix(sources[0], "data:image/png;base64,"))
	})

	t.Run("linked pictures allowed", func(t *testing.T) {
		opts := DefaultMarkupOptions()
		opts.AllowRemote = true
		markup, err := ToHTML(data, opts)
		require.NoError(t, err)

		sources, err := ImageSources(markup)
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, "https://example.com/logo.png", sources[0])
		assert.True(t, strings.HasPrefix(sources[1], "data:image/png;base64,"))
	})
}

func TestToHTML_NotAPackage(t *testing.T) {
	_, err := ToHTML([]byte("plain text"), DefaultMarkupOptions())
	assert.Error(t, err)
}

func TestToHTML_PartLimits(t *testing.T) {
	picture := `<w:p><w:r><a:blip r:embed="rId1"/></w:r></w:p>`
	rels := `<Relationship Id="rId1" Type="` + relImage + `" Target="media/big.png"/>`
	big := make([]byte, 4096)

	t.Run("media part", func(t *testing.T) {
		data := rawDocx(t, picture, rels, map[string][]byte{"word/media/big.png": big})
		_, err := ToHTML(data, MarkupOptions{MaxPartBytes: 2048})
		assert.ErrorIs(t, err, ErrPartTooLarge)
	})

	t.Run("inlined media total", func(t *testing.T) {
		data := rawDocx(t, strings.Repeat(picture, 3), rels, map[string][]byte{"word/media/big.png": big})
		_, err := ToHTML(data, MarkupOptions{MaxPartBytes: 8192, MaxMediaBytes: 10000})
		assert.ErrorIs(t, err, ErrPartTooLarge)

		_, err = ToHTML(data, MarkupOptions{MaxPartBytes: 8192, MaxMediaBytes: 20000})
		assert.NoError(t, err)
	})

	t.Run("document part", func(t *testing.T) {
		body := strings.Repeat(`<w:p><w:r><w:t>words</w:t></w:r></w:p>`, 200)
		data := rawDocx(t, body, "", nil)
		_, err := ToHTML(data, MarkupOptions{MaxPartBytes: 1024})
		assert.ErrorIs(t, err, ErrPartTooLarge)
	})
}

func TestExtractor_Locate(t *testing.T) {
	e := NewExtractor(DefaultMarkupOptions(), nil)

	t.Run("no images", func(t *testing.T) {
		data := rawDocx(t, `<w:p><w:r><w:t>only words</w:t></w:r></w:p>`, "", nil)
		sources, err := e.Locate(context.Background(), domain.InputFile{Name: "text.docx", Data: data})
		require.NoError(t, err)
		assert.Empty(t, sources)
	})

	t.Run("unreadable", func(t *testing.T) {
		_, err := e.Locate(context.Background(), domain.InputFile{Name: "bad.docx", Data: []byte("nope")})
		de, ok := domain.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ErrorTypeIO, de.Type)
		assert.Equal(t, "bad.docx", de.File)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := e.Locate(context.Background(), domain.InputFile{Name: "zero.docx"})
		assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
	})

	t.Run("part too large", func(t *testing.T) {
		small := NewExtractor(MarkupOptions{MaxPartBytes: 2048}, nil)
		data := rawDocx(t, `<w:p><w:r><a:blip r:embed="rId1"/></w:r></w:p>`,
			`<Relationship Id="rId1" Type="`+relImage+`" Target="media/big.png"/>`,
			map[string][]byte{"word/media/big.png": make([]byte, 4096)})

		_, err := small.Locate(context.Background(), domain.InputFile{Name: "huge.docx", Data: data})
		de, ok := domain.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ErrorTypeIO, de.Type)
		assert.Equal(t, "huge.docx", de.File)
		assert.ErrorIs(t, err, ErrPartTooLarge)
	})
}

func TestImageFileName(t *testing.T) {
	assert.Equal(t, "docx_img1.png", ImageFileName(1))
	assert.Equal(t, "docx_img10.png", ImageFileName(10))
}

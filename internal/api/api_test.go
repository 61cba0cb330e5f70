package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/file-converter/internal/config"
	"github.com/spherical/file-converter/internal/convert"
	"github.com/spherical/file-converter/internal/domain"
)

type upload struct {
	field       string
	name        string
	contentType string
	data        []byte
}

// pageRenderer yields n one-byte pages
type pageRenderer int

func (n pageRenderer) Render(_ context.Context, _ domain.InputFile, deliver func(domain.OutputFile) error) (int, error) {
	for p := 1; p <= int(n); p++ {
		if err := deliver(domain.OutputFile{Name: fmt.Sprintf("page%d.png", p), ContentType: domain.MediaTypePNG, Data: []byte{byte(p)}}); err != nil {
			return p - 1, err
		}
	}
	return int(n), nil
}

func pngData(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{G: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestServer(t *testing.T, components *convert.Components) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	comps := convert.DefaultComponents(cfg, nil)
	if components != nil {
		comps = *components
	}
	dispatcher := convert.NewDispatcher(comps, 2, nil)
	server := httptest.NewServer(NewRouter(cfg, dispatcher, nil))
	t.Cleanup(server.Close)
	return server
}

func postMultipart(t *testing.T, url string, fields map[string]string, uploads ...upload) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, u := range uploads {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+u.field+`"; filename="`+u.name+`"`)
		h.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// linkedPictureDocx is a DOCX whose only picture is linked by URL
func linkedPictureDocx(t *testing.T, target string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	write("word/document.xml", `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`+
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`+
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<w:body><w:p><w:r><a:blip r:link="rId1"/></w:r></w:p></w:body></w:document>`)
	write("word/_rels/document.xml.rels", `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"`+
		` Target="`+target+`" TargetMode="External"/></Relationships>`)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func decodeError(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestKinds(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/api/v1/kinds")
	require.NoError(t, err)
	defer resp.Body.Close()

	var kinds []KindDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&kinds))
	require.Len(t, kinds, 4)
	assert.Equal(t, "img2pdf", kinds[0].Tag)
	assert.Equal(t, "docx2img", kinds[3].Tag)
}

func TestResize(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postMultipart(t, server.URL+"/api/v1/resize",
		map[string]string{"width": "20", "height": "10", "quality": "0.5"},
		upload{field: "image", name: "photo.png", contentType: "image/png", data: pngData(t, 64, 48)})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "compressed-image.jpg", params["filename"])

	cfg, err := jpeg.DecodeConfig(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Width)
	assert.Equal(t, 10, cfg.Height)
}

func TestResize_NativeSizeWhenBlank(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postMultipart(t, server.URL+"/api/v1/resize", nil,
		upload{field: "image", name: "photo.png", contentType: "image/png", data: pngData(t, 33, 17)})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "33", resp.Header.Get("X-Image-Width"))
	assert.Equal(t, "17", resp.Header.Get("X-Image-Height"))
}

func TestResize_InvalidInputs(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postMultipart(t, server.URL+"/api/v1/resize", map[string]string{"width": "abc"},
		upload{field: "image", name: "photo.png", contentType: "image/png", data: pngData(t, 8, 8)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", decodeError(t, resp)["error"])

	resp = postMultipart(t, server.URL+"/api/v1/resize", nil,
		upload{field: "image", name: "notes.txt", contentType: "text/plain", data: []byte("hello")})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = postMultipart(t, server.URL+"/api/v1/resize", map[string]string{"width": "5"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResize_RejectsOversizedTarget(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postMultipart(t, server.URL+"/api/v1/resize",
		map[string]string{"width": "60000", "height": "60000"},
		upload{field: "image", name: "photo.png", contentType: "image/png", data: pngData(t, 4, 4)})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", decodeError(t, resp)["error"])
}

func TestConvert_LinkedPicturesAreNotFetched(t *testing.T) {
	var calls atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("internal-only"))
	}))
	defer internal.Close()

	server := newTestServer(t, nil)
	resp := postMultipart(t, server.URL+"/api/v1/convert/docx2img", nil,
		upload{field: "files", name: "linked.docx", contentType: domain.MediaTypeDOCX,
			data: linkedPictureDocx(t, internal.URL+"/latest/meta-data")})

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, convert.NoticeNoImages, resp.Header.Get(headerStatus))
	assert.NotContains(t, string(body), "internal-only")
	assert.Equal(t, int32(0), calls.Load())
}

func TestConvert_RemotePicturesNeverReachInternalHosts(t *testing.T) {
	var calls atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("internal-only"))
	}))
	defer internal.Close()

	cfg := config.DefaultConfig()
	cfg.Fetch.AllowRemote = true
	cfg.Fetch.MaxRetries = 0
	comps := convert.DefaultComponents(cfg, nil)
	server := newTestServer(t, &comps)

	resp := postMultipart(t, server.URL+"/api/v1/convert/docx2img", nil,
		upload{field: "files", name: "linked.docx", contentType: domain.MediaTypeDOCX,
			data: linkedPictureDocx(t, internal.URL+"/latest/meta-data")})

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Failed to extract 1 of 1 images.", resp.Header.Get(headerStatus))
	assert.NotContains(t, string(body), "internal-only")
	assert.Equal(t, int32(0), calls.Load())
}

func TestConvert_SingleOutputIsAttachment(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postMultipart(t, server.URL+"/api/v1/convert/img2pdf", nil,
		upload{field: "files", name: "a.png", contentType: "image/png", data: pngData(t, 10, 10)},
		upload{field: "files", name: "b.png", contentType: "image/png", data: pngData(t, 10, 10)})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.MediaTypePDF, resp.Header.Get("Content-Type"))
	assert.Equal(t, "PDF created!", resp.Header.Get(headerStatus))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestConvert_ManyOutputsAreMultipart(t *testing.T) {
	renderer := pageRenderer(3)
	server := newTestServer(t, &convert.Components{PDFRenderer: renderer})

	resp := postMultipart(t, server.URL+"/api/v1/convert/pdf2img", nil,
		upload{field: "files", name: "doc.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4")})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Images extracted from PDF!", resp.Header.Get(headerStatus))

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(resp.Body, params["boundary"])
	var names []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, part.FileName())
	}
	assert.Equal(t, []string{"page1.png", "page2.png", "page3.png"}, names)
}

func TestConvert_Errors(t *testing.T) {
	server := newTestServer(t, nil)

	t.Run("unknown kind", func(t *testing.T) {
		resp := postMultipart(t, server.URL+"/api/v1/convert/pdf2docx", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Unsupported conversion type: pdf2docx", resp.Header.Get(headerStatus))
	})

	t.Run("no files", func(t *testing.T) {
		resp := postMultipart(t, server.URL+"/api/v1/convert/img2pdf", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "validation", body["error"])
		assert.Equal(t, "Please select files.", body["message"])
	})

	t.Run("disallowed image type", func(t *testing.T) {
		resp := postMultipart(t, server.URL+"/api/v1/convert/img2docx", nil,
			upload{field: "files", name: "anim.gif", contentType: "image/gif", data: []byte("GIF89a")})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Unsupported image format: anim.gif", resp.Header.Get(headerStatus))
	})

	t.Run("unreadable image", func(t *testing.T) {
		resp := postMultipart(t, server.URL+"/api/v1/convert/img2pdf", nil,
			upload{field: "files", name: "bad.png", contentType: "image/png", data: []byte("nope")})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "Error reading image: bad.png", resp.Header.Get(headerStatus))
	})
}

func TestConvert_MissingDependency(t *testing.T) {
	server := newTestServer(t, &convert.Components{})

	resp := postMultipart(t, server.URL+"/api/v1/convert/pdf2img", nil,
		upload{field: "files", name: "doc.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4")})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "PDF renderer not loaded.", resp.Header.Get(headerStatus))
}

func TestCORS_Preflight(t *testing.T) {
	server := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/v1/resize", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusCode(domain.ErrorTypeUnsupportedFormat))
	assert.Equal(t, http.StatusUnprocessableEntity, statusCode(domain.ErrorTypePackaging))
	assert.Equal(t, http.StatusServiceUnavailable, statusCode(domain.ErrorTypeMissingDependency))
	assert.Equal(t, http.StatusInternalServerError, statusCode(domain.ErrorTypeConfig))
}

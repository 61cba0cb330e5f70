package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spherical/file-converter/internal/domain"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngFile(t *testing.T, name string) domain.InputFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(40, 30, color.RGBA{R: 200, A: 255})))
	return domain.InputFile{Name: name, ContentType: domain.MediaTypePNG, Data: buf.Bytes()}
}

func jpegFile(t *testing.T, name string) domain.InputFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(30, 40, color.RGBA{G: 200, A: 255}), nil))
	return domain.InputFile{Name: name, ContentType: domain.MediaTypeJPEG, Data: buf.Bytes()}
}

func gifFile(t *testing.T, name string) domain.InputFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, solid(20, 20, color.RGBA{B: 200, A: 255}), nil))
	return domain.InputFile{Name: name, ContentType: "image/gif", Data: buf.Bytes()}
}

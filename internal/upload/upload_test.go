package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func encoded(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, enc(&buf, image.NewRGBA(image.Rect(0, 0, 5, 2))))
	return buf.Bytes()
}

func pngBytes(t *testing.T) []byte {
	return encoded(t, func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) })
}

func TestReadPNG(t *testing.T) {
	img, err := Reader{}.Read(context.Background(), File{Name: "a.png", Type: "image/png", Body: bytes.NewReader(pngBytes(t))})
	require.NoError(t, err)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 5, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.True(t, strings.HasPrefix(img.Src, "data:image/png;base64,"))
}

func TestReadBMPWithoutType(t *testing.T) {
	data := encoded(t, func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) })
	img, err := Reader{}.Read(context.Background(), File{Name: "a.bmp", Body: bytes.NewReader(data)})
	require.NoError(t, err)
	assert.Equal(t, "bmp", img.Format)
	assert.True(t, strings.HasPrefix(img.Src, "data:image/bmp;base64,"))
}

func TestReadSVG(t *testing.T) {
	svg := `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"></svg>`
	img, err := Reader{}.Read(context.Background(), File{Name: "a.svg", Type: "image/svg+xml", Body: strings.NewReader(svg)})
	require.NoError(t, err)
	assert.Equal(t, "svg", img.Format)
	assert.True(t, strings.HasPrefix(img.Src, "data:image/svg+xml;base64,"))
}

func TestRejectsNonImages(t *testing.T) {
	cases := []File{
		{Name: "a.txt", Type: "text/plain", Body: strings.NewReader("hello")},
		{Name: "a.png", Type: "image/png", Body: strings.NewReader("garbage")},
		{Name: "nothing"},
	}
	for _, f := range cases {
		_, err := Reader{}.Read(context.Background(), f)
		assert.True(t, errors.Is(err, ErrNotImage), f.Name)
	}
}

func TestTooLarge(t *testing.T) {
	data := pngBytes(t)
	_, err := Reader{MaxSize: int64(len(data) - 1)}.Read(context.Background(), File{Name: "a.png", Body: bytes.NewReader(data)})
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = Reader{MaxSize: int64(len(data))}.Read(context.Background(), File{Name: "a.png", Body: bytes.NewReader(data)})
	assert.NoError(t, err)
}

func TestCanceledRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Reader{}.Read(ctx, File{Name: "a.png", Body: bytes.NewReader(pngBytes(t))})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReadAsync(t *testing.T) {
	ch := Reader{}.ReadAsync(context.Background(), File{Name: "a.png", Body: bytes.NewReader(pngBytes(t))})
	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, "png", res.Image.Format)
	_, ok = <-ch
	assert.False(t, ok)
}

// Package upload reads files dropped on image placeholders and turns them
// into data URLs an Image layer can show.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrNotImage means the file is not an image the editor can place.
	ErrNotImage = errors.New("not an image")
	// ErrTooLarge means the file exceeds the reader's size limit.
	ErrTooLarge = errors.New("image too large")
)

// DefaultMaxSize caps a single upload.
const DefaultMaxSize = 20 << 20

const chunk = 64 << 10

// File is one dropped file. Type is the MIME type the client reported and
// may be empty.
type File struct {
	Name string
	Type string
	Body io.Reader
}

// Image is a successfully read upload.
type Image struct {
	Format string
	Width  int
	Height int
	// Src is a data URL.
	Src string
}

// Result is what ReadAsync delivers.
type Result struct {
	Image Image
	Err   error
}

// Reader validates and encodes uploads.
type Reader struct {
	MaxSize int64
}

// Read consumes f and returns it as an image. The read stops early when ctx
// is done. A file that is not a decodable image (or SVG) fails with
// ErrNotImage and nothing is returned.
func (r Reader) Read(ctx context.Context, f File) (Image, error) {
	if f.Type != "" && !strings.HasPrefix(f.Type, "image/") {
		return Image{}, fmt.Errorf("%s: %w (%s)", f.Name, ErrNotImage, f.Type)
	}
	data, err := r.readAll(ctx, f.Body)
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", f.Name, err)
	}
	if isSVG(f.Type, data) {
		return Image{Format: "svg", Src: dataURL("image/svg+xml", data)}, nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w: %v", f.Name, ErrNotImage, err)
	}
	return Image{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Src:    dataURL("image/"+format, data),
	}, nil
}

// ReadAsync reads f on its own goroutine. The channel receives exactly one
// result and is then closed.
func (r Reader) ReadAsync(ctx context.Context, f File) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		img, err := r.Read(ctx, f)
		out <- Result{Image: img, Err: err}
	}()
	return out
}

func (r Reader) readAll(ctx context.Context, body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, ErrNotImage
	}
	limit := r.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	var buf bytes.Buffer
	lr := io.LimitReader(body, limit+1)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := io.CopyN(&buf, lr, chunk)
		if int64(buf.Len()) > limit {
			return nil, ErrTooLarge
		}
		if err == io.EOF || (err == nil && n < chunk) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func isSVG(mime string, data []byte) bool {
	if mime != "" && mime != "image/svg+xml" {
		return false
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("<svg"))
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

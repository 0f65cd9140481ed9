package interaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/zot/pagelayer/internal/layer"
	"github.com/zot/pagelayer/internal/upload"
)

// ErrNotPlaceholder is returned when a file is dropped on anything but an
// image placeholder.
var ErrNotPlaceholder = errors.New("layer is not an image placeholder")

// CheckDropTarget reports whether id can take a dropped image.
func (c *Controller) CheckDropTarget(id string) error {
	l, ok := c.ed.Layer(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotPlaceholder)
	}
	if _, ok := l.(*layer.Placeholder); !ok {
		return fmt.Errorf("%s: %w", id, ErrNotPlaceholder)
	}
	return nil
}

// DropFile reads f and turns placeholder id into an image showing it. On any
// failure the placeholder is left as it was.
func (c *Controller) DropFile(ctx context.Context, r upload.Reader, id string, f upload.File) error {
	if err := c.CheckDropTarget(id); err != nil {
		return err
	}
	img, err := r.Read(ctx, f)
	if err != nil {
		return err
	}
	return c.ApplyUpload(id, upload.Result{Image: img})
}

// ApplyUpload finishes an asynchronous read. The placeholder may have been
// deleted or replaced while the file was read; then nothing changes.
func (c *Controller) ApplyUpload(id string, res upload.Result) error {
	if res.Err != nil {
		c.log.Log(1, "upload for %s failed: %v", id, res.Err)
		return res.Err
	}
	if err := c.CheckDropTarget(id); err != nil {
		return err
	}
	c.ed.Transmute(id, res.Image.Src)
	c.ed.Select(id)
	c.log.Log(3, "placeholder %s now %s image %dx%d", id, res.Image.Format, res.Image.Width, res.Image.Height)
	return nil
}

package document

import (
	"context"
	"fmt"

	"github.com/zot/pagelayer/internal/storage"
	"github.com/zot/pagelayer/internal/store"
)

// Save writes every page's layers to b, replacing what b held for them.
func (d *Document) Save(ctx context.Context, b storage.Backend) error {
	for _, n := range d.Pages() {
		records, err := store.Records(n, d.pages[n].store.Snapshot())
		if err != nil {
			return fmt.Errorf("save page %d: %w", n, err)
		}
		if err := storage.ReplacePage(ctx, b, n, records); err != nil {
			return fmt.Errorf("save page %d: %w", n, err)
		}
	}
	d.log.Log(0, "saved %d pages", len(d.pages))
	return nil
}

// Load replaces the layers of every page stored in b. Loaded pages start with
// an empty history and the selection is cleared.
func (d *Document) Load(ctx context.Context, b storage.Backend) error {
	pages, err := b.Pages(ctx)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}
	for _, n := range pages {
		records, err := b.LoadPage(ctx, n)
		if err != nil {
			return fmt.Errorf("load page %d: %w", n, err)
		}
		ls, err := store.FromRecords(records)
		if err != nil {
			return fmt.Errorf("load page %d: %w", n, err)
		}
		d.page(n).store.Replace(ls)
		d.history.Clear(n)
	}
	d.gesture = nil
	d.selected, d.editing = "", ""
	d.log.Log(0, "loaded %d pages", len(pages))
	d.notify(ChangeLayers)
	return nil
}

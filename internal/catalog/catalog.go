package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/storage"
)

// Catalog is a read-only view of the offers, built once and shared by
// every handler without locking.
type Catalog struct {
	offers []*model.Offer
	byID   map[int64]*model.Offer
}

// New builds a catalog from offers in the given order.
func New(offers []*model.Offer) (*Catalog, error) {
	c := &Catalog{
		offers: make([]*model.Offer, 0, len(offers)),
		byID:   make(map[int64]*model.Offer, len(offers)),
	}
	for _, o := range offers {
		if _, dup := c.byID[o.ID]; dup {
			return nil, fmt.Errorf("%w: %d", storage.ErrDuplicateOffer, o.ID)
		}
		copied := *o
		copied.DaysOfWeek = slices.Clone(o.DaysOfWeek)
		c.offers = append(c.offers, &copied)
		c.byID[o.ID] = &copied
	}
	return c, nil
}

// Load reads the stored catalog.
func Load(ctx context.Context, store storage.Store) (*Catalog, error) {
	offers, err := store.ListOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return New(offers)
}

// Import replaces the stored catalog with the JSON array in path.
func Import(ctx context.Context, store storage.Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var offers []*model.Offer
	if err := json.Unmarshal(raw, &offers); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := store.ReplaceOffers(ctx, offers); err != nil {
		return 0, err
	}
	return len(offers), nil
}

// List returns offers in load order. Callers must not modify them.
func (c *Catalog) List() []*model.Offer {
	return c.offers
}

// Get returns the offer with id or storage.ErrNotFound.
func (c *Catalog) Get(id int64) (*model.Offer, error) {
	o, ok := c.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return o, nil
}

// Len is the number of offers.
func (c *Catalog) Len() int {
	return len(c.offers)
}

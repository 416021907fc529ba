package tenant

import "context"

// Invalidator is implemented by caching readers that can drop an entry.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string)
}

// Directory pairs a (possibly cached) tenant reader with the writing store,
// so consumers get cached lookups while count updates still hit the ledger
// and evict the stale cache entry.
type Directory struct {
	reader Getter
	store  *Store
}

// NewDirectory builds a directory. reader is typically the redis Cache in
// production and the bare store in tools that do not run redis.
func NewDirectory(reader Getter, store *Store) *Directory {
	return &Directory{reader: reader, store: store}
}

// Get resolves a tenant through the reader.
func (d *Directory) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	return d.reader.Get(ctx, tenantID)
}

// AdjustSubscriberCount applies a delta and evicts any cached copy.
func (d *Directory) AdjustSubscriberCount(ctx context.Context, tenantID string, delta int64) error {
	err := d.store.AdjustSubscriberCount(ctx, tenantID, delta)
	d.invalidate(ctx, tenantID)
	return err
}

// SetSubscriberCount overwrites the count and evicts any cached copy.
func (d *Directory) SetSubscriberCount(ctx context.Context, tenantID string, count int64) error {
	err := d.store.SetSubscriberCount(ctx, tenantID, count)
	d.invalidate(ctx, tenantID)
	return err
}

func (d *Directory) invalidate(ctx context.Context, tenantID string) {
	if inv, ok := d.reader.(Invalidator); ok {
		inv.Invalidate(ctx, tenantID)
	}
}

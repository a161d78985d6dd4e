package invoice

import (
	"context"

	"github.com/curanet/nursebill/internal/types"
)

type Repository interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	Update(ctx context.Context, item *Item) error
	// ListByDateRange returns invoices whose invoice date falls inside
	// [start, end], inclusive
	ListByDateRange(ctx context.Context, start, end types.Date) ([]*Item, error)
	ListByBatch(ctx context.Context, batchID string) ([]*Item, error)
}

type BatchRepository interface {
	Create(ctx context.Context, batch *Batch) error
	Get(ctx context.Context, id string) (*Batch, error)
	Update(ctx context.Context, batch *Batch) error
	List(ctx context.Context) ([]*Batch, error)
}

package tariff

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, validity *ValidityDate) error
	Get(ctx context.Context, id string) (*ValidityDate, error)
	ListByCareCode(ctx context.Context, careCodeID string) ([]*ValidityDate, error)
	Update(ctx context.Context, validity *ValidityDate) error
	Delete(ctx context.Context, id string) error
}

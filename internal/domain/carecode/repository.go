package carecode

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, code *CareCode) error
	Get(ctx context.Context, id string) (*CareCode, error)
	GetByCode(ctx context.Context, code string) (*CareCode, error)
	List(ctx context.Context) ([]*CareCode, error)
	Update(ctx context.Context, code *CareCode) error
}

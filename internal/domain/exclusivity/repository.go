package exclusivity

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, group *Group) error
	Get(ctx context.Context, id string) (*Group, error)
	List(ctx context.Context) ([]*Group, error)
	Delete(ctx context.Context, id string) error
}

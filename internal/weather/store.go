package weather

import (
	"context"
	"time"
)

// Store is the contract the in-memory store and the postgres store satisfy.
//
// FindByLocation returns ErrNotFound when no record matches. Delete and
// DeleteBefore report the number of records removed. Any other error is a
// persistence failure.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	FindAll(ctx context.Context) ([]Record, error)
	FindByLocation(ctx context.Context, location string) (Record, error)
	Find(ctx context.Context, q Query) ([]Record, error)
	Delete(ctx context.Context, location string) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

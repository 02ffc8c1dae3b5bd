// Package store persists append-only price records.
package store

import (
	"context"
	"errors"

	"agripulse-api/internal/models"
)

// ErrStorage wraps backend failures so callers can branch on the class of
// error without knowing the backend.
var ErrStorage = errors.New("storage failure")

// Store is the durable append-only record store. Latest returns (nil, nil)
// when no record has ever been written. Recent returns records descending by
// timestamp; callers needing ascending order must reverse.
type Store interface {
	Insert(ctx context.Context, rec *models.PriceRecord) (string, error)
	Latest(ctx context.Context) (*models.PriceRecord, error)
	Recent(ctx context.Context, limit int) ([]models.PriceRecord, error)
	Close() error
}

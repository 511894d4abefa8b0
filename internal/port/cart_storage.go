package port

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type CartStorage interface {
	// Get reads the value stored under key, returns ErrNotFound if absent
	Get(ctx context.Context, key string) (string, error)

	// Set overwrites the value stored under key
	Set(ctx context.Context, key, value string) error
}

package session

import (
	"context"
	"errors"
)

// Keys persisted by the client. The token and the active admission pointer
// are independent: clearing one never touches the other.
const (
	KeyToken           = "token"
	KeyActiveAdmission = "active_admission_id"
)

// ErrNotFound is returned by stores for absent keys.
var ErrNotFound = errors.New("session key not found")

// Store is the durable client-side key-value storage.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

package credentials

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotStored is returned by Store.Load when no credentials have been saved.
var ErrNotStored = errors.New("no stored credentials")

// Store persists the credentials of the active account. Save is only called after a
// successful login.
type Store interface {
	// Load returns the stored credentials, or ErrNotStored
	Load(ctx context.Context) (*Credentials, error)

	// Save replaces the stored credentials
	Save(ctx context.Context, c Credentials) error

	// Clear removes the stored credentials; clearing an empty store is not an error
	Clear(ctx context.Context) error
}

package auth

import "github.com/pkg/errors"

// ErrProviderLocked rejects a login for another provider while a session is held.
var ErrProviderLocked = errors.New("another provider is signed in; log out first")

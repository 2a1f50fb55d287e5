package accounts

import (
	"fmt"
	"sync/atomic"

	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
)

type snapshot struct {
	accounts []Account
	activeID string
}

// Registry holds the accounts of the last successful login and the active account pointer.
// Every change publishes a new snapshot; the account list is never patched in place.
type Registry struct {
	current atomic.Pointer[snapshot]
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Replace installs a new account list. The first account becomes active.
func (r *Registry) Replace(list []Account) {
	if len(list) == 0 {
		r.current.Store(nil)
		return
	}
	copied := make([]Account, len(list))
	copy(copied, list)
	r.current.Store(&snapshot{accounts: copied, activeID: copied[0].ID})
}

// Clear drops every account.
func (r *Registry) Clear() {
	r.current.Store(nil)
}

// List returns a copy of the accounts.
func (r *Registry) List() []Account {
	snap := r.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]Account, len(snap.accounts))
	copy(out, snap.accounts)
	return out
}

// Active returns the active account.
func (r *Registry) Active() (Account, error) {
	snap := r.current.Load()
	if snap == nil {
		return Account{}, apperrors.ErrNotAuthenticated
	}
	a, _ := snap.find(snap.activeID)
	return a, nil
}

// Get returns the account with id.
func (r *Registry) Get(id string) (Account, error) {
	snap := r.current.Load()
	if snap == nil {
		return Account{}, apperrors.ErrNotAuthenticated
	}
	a, ok := snap.find(id)
	if !ok {
		return Account{}, fmt.Errorf("%w: account %q", apperrors.ErrNotFound, id)
	}
	return a, nil
}

// Resolve returns the account with id, or the active account when id is empty.
func (r *Registry) Resolve(id string) (Account, error) {
	if id == "" {
		return r.Active()
	}
	return r.Get(id)
}

// Select moves the active pointer to id.
func (r *Registry) Select(id string) error {
	for {
		snap := r.current.Load()
		if snap == nil {
			return apperrors.ErrNotAuthenticated
		}
		if _, ok := snap.find(id); !ok {
			return fmt.Errorf("%w: account %q", apperrors.ErrNotFound, id)
		}
		next := &snapshot{accounts: snap.accounts, activeID: id}
		if r.current.CompareAndSwap(snap, next) {
			return nil
		}
	}
}

func (s *snapshot) find(id string) (Account, bool) {
	for _, a := range s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

package sessions

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/jrsteele09/go-school-session/internal/utils"
)

// Session is the live credential attached to outgoing data requests.
// A Session is never modified after New; a re-login produces a new value.
type Session struct {
	ID           string                   // Unique session identifier (UUID)
	Token        string                   // Token, cookie value or handle id presented to the backend
	IssuedAt     time.Time                // When the backend granted the session
	ExpiresAt    time.Time                // Zero when the backend gives no expiry hint
	ProviderKind credentials.ProviderKind // Backend family that issued it
	Identity     string                   // credentials.Identity() of the login that produced it
	raw          map[string]any           // Provider specific state (refresh token, handle, cookies)
}

// New builds a Session. raw is copied.
func New(kind credentials.ProviderKind, identity, token string, issuedAt time.Time, raw map[string]any) *Session {
	return &Session{
		ID:           uuid.New().String(),
		Token:        token,
		IssuedAt:     issuedAt,
		ProviderKind: kind,
		Identity:     identity,
		raw:          utils.CopyMap(raw),
	}
}

// WithExpiry returns s with an expiry hint. Only used while the session is being built.
func (s *Session) WithExpiry(expiresAt time.Time) *Session {
	s.ExpiresAt = expiresAt
	return s
}

// Raw returns a provider specific value.
func (s *Session) Raw(key string) any {
	if s == nil {
		return nil
	}
	return s.raw[key]
}

// RawString returns a provider specific value when it is a string.
func (s *Session) RawString(key string) string {
	v, _ := s.Raw(key).(string)
	return v
}

// Holder owns the one active Session. Readers always see a complete value.
type Holder struct {
	current atomic.Pointer[Session]
}

// Current returns the active Session or nil.
func (h *Holder) Current() *Session {
	return h.current.Load()
}

// Replace swaps in s and returns the previous Session.
func (h *Holder) Replace(s *Session) *Session {
	return h.current.Swap(s)
}

// CompareAndReplace swaps in s only if old is still the active Session.
func (h *Holder) CompareAndReplace(old, s *Session) bool {
	return h.current.CompareAndSwap(old, s)
}

// Clear drops the active Session.
func (h *Holder) Clear() *Session {
	return h.current.Swap(nil)
}

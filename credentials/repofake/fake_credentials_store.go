package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-school-session/credentials"
)

var _ credentials.Store = (*FakeCredentialsStore)(nil)

type FakeCredentialsStore struct {
	stored *credentials.Credentials
	saves  int
	clears int
	lock   sync.RWMutex
}

func NewFakeCredentialsStore() *FakeCredentialsStore {
	return &FakeCredentialsStore{}
}

func (s *FakeCredentialsStore) Load(ctx context.Context) (*credentials.Credentials, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.stored == nil {
		return nil, credentials.ErrNotStored
	}
	c := s.stored.WithExtra(nil)
	return &c, nil
}

func (s *FakeCredentialsStore) Save(ctx context.Context, c credentials.Credentials) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	stored := c.WithExtra(nil)
	s.stored = &stored
	s.saves++
	return nil
}

func (s *FakeCredentialsStore) Clear(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.stored = nil
	s.clears++
	return nil
}

// Saves reports how many times Save was called.
func (s *FakeCredentialsStore) Saves() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.saves
}

// Clears reports how many times Clear was called.
func (s *FakeCredentialsStore) Clears() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.clears
}

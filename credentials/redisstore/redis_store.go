// Package redisstore persists credentials in a single Redis key, sealed at rest.
package redisstore

import (
	"context"

	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ credentials.Store = (*Store)(nil)

type Store struct {
	client redis.UniversalClient
	key    string
	sealer *credentials.Sealer
}

// New wraps an existing client. key is the Redis key holding the record.
func New(client redis.UniversalClient, key string, sealer *credentials.Sealer) (*Store, error) {
	if client == nil {
		return nil, errors.New("[redisstore.New] client is required")
	}
	if key == "" {
		return nil, errors.New("[redisstore.New] key is required")
	}
	if sealer == nil {
		return nil, errors.New("[redisstore.New] sealer is required")
	}
	return &Store{client: client, key: key, sealer: sealer}, nil
}

func (s *Store) Load(ctx context.Context) (*credentials.Credentials, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, credentials.ErrNotStored
	}
	if err != nil {
		return nil, errors.Wrap(err, "[redisstore.Load] GET")
	}
	c, err := s.sealer.Unmarshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "[redisstore.Load] Unmarshal")
	}
	return c, nil
}

func (s *Store) Save(ctx context.Context, c credentials.Credentials) error {
	data, err := s.sealer.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "[redisstore.Save] Marshal")
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Save] SET")
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrap(err, "[redisstore.Clear] DEL")
	}
	return nil
}

package config

import (
	"encoding/hex"
	"fmt"
)

const (
	StoreKindMemory = "memory"
	StoreKindRedis  = "redis"
	StoreKindSQLite = "sqlite"
)

type StoreConfig interface {
	GetStoreKind() string
	GetRedisAddr() string
	GetRedisDB() int
	GetRedisKey() string
	GetSQLitePath() string
	GetSealKey() []byte
}

// Store selects where the active account's credentials are persisted.
type Store struct {
	StoreKind  string `env:"STORE_KIND" envDefault:"memory"`
	RedisAddr  string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB    int    `env:"REDIS_DB" envDefault:"0"`
	RedisKey   string `env:"REDIS_KEY" envDefault:"schoolsession:credentials"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/credentials.db"`
	SealKeyHex string `env:"SEAL_KEY"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreKind() string {
	return s.StoreKind
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisKey() string {
	return s.RedisKey
}

func (s Store) GetSQLitePath() string {
	return s.SQLitePath
}

// GetSealKey returns the decoded 32 byte key, or nil when none is configured.
func (s Store) GetSealKey() []byte {
	if s.SealKeyHex == "" {
		return nil
	}
	key, err := hex.DecodeString(s.SealKeyHex)
	if err != nil {
		return nil
	}
	return key
}

func (s Store) validate() error {
	switch s.StoreKind {
	case StoreKindMemory:
		return nil
	case StoreKindRedis, StoreKindSQLite:
	default:
		return fmt.Errorf("unknown STORE_KIND %q", s.StoreKind)
	}
	if s.SealKeyHex == "" {
		return fmt.Errorf("SEAL_KEY is required for STORE_KIND=%s", s.StoreKind)
	}
	key, err := hex.DecodeString(s.SealKeyHex)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("SEAL_KEY must be 64 hex characters")
	}
	return nil
}

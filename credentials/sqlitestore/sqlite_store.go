// Package sqlitestore persists credentials in a local SQLite file, sealed at rest.
package sqlitestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS credentials (
	slot       INTEGER PRIMARY KEY CHECK (slot = 1),
	record     BLOB    NOT NULL,
	updated_at INTEGER NOT NULL
)`

var _ credentials.Store = (*Store)(nil)

// Store keeps a single row; the active account is the only one persisted.
type Store struct {
	sqlDB  *sql.DB
	sealer *credentials.Sealer
	now    func() time.Time
}

// Open opens the SQLite file at path and creates the schema.
func Open(path string, sealer *credentials.Sealer) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("[sqlitestore.Open] storage path is required")
	}
	if sealer == nil {
		return nil, errors.New("[sqlitestore.Open] sealer is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] open sqlite db")
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] ping sqlite db")
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] create schema")
	}
	return &Store{sqlDB: sqlDB, sealer: sealer, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Load(ctx context.Context) (*credentials.Credentials, error) {
	var data []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT record FROM credentials WHERE slot = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credentials.ErrNotStored
	}
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Load] select")
	}
	c, err := s.sealer.Unmarshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Load] Unmarshal")
	}
	return c, nil
}

func (s *Store) Save(ctx context.Context, c credentials.Credentials) error {
	data, err := s.sealer.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "[sqlitestore.Save] Marshal")
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO credentials (slot, record, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		data,
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return errors.Wrap(err, "[sqlitestore.Save] upsert")
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return errors.Wrap(err, "[sqlitestore.Clear] delete")
	}
	return nil
}

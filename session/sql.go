package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	getQuery = "SELECT value FROM session_values WHERE session_id = ? AND name = ?"
	setQuery = `
	INSERT INTO session_values (session_id, name, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (session_id, name) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at`
	mysqlSetQuery = `
	INSERT INTO session_values (session_id, name, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
	value = VALUES(value),
	updated_at = VALUES(updated_at)`
	clearQuery = "DELETE FROM session_values WHERE session_id = ?"
	sweepQuery = "DELETE FROM session_values WHERE updated_at < ?"
)

// SQLStore persists session values in sqlite, postgres or mysql so that
// tokens survive a restart for as long as the session itself does.
type SQLStore struct {
	DB  *sqlx.DB
	now func() time.Time
}

// Open connects using one of the supported drivers: sqlite, postgres or mysql.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("session: unsupported database driver %q", driver)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}
	return NewSQLStore(db), nil
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		DB:  db,
		now: time.Now,
	}
}

func (s *SQLStore) ApplyMigrations(migrations fs.FS) error {
	goose.SetBaseFS(migrations)

	dialect, dir := goose.DialectSQLite3, "."
	switch s.DB.DriverName() {
	case "postgres":
		dialect = goose.DialectPostgres
	case "mysql":
		dialect, dir = goose.DialectMySQL, "mysql"
	}
	if err := goose.SetDialect(string(dialect)); err != nil {
		return err
	}

	if err := goose.Up(s.DB.DB, dir); err != nil {
		return err
	}

	return nil
}

func (s *SQLStore) Get(ctx context.Context, sessionID, key string) (string, error) {
	var value string
	err := s.DB.GetContext(ctx, &value, s.DB.Rebind(getQuery), sessionID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, sessionID, key, value string) error {
	query := setQuery
	if s.DB.DriverName() == "mysql" {
		query = mysqlSetQuery
	}
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(query), sessionID, key, value, s.now().Unix())
	return err
}

func (s *SQLStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(clearQuery), sessionID)
	return err
}

// Sweep deletes every value that has not been written since idleSince.
func (s *SQLStore) Sweep(ctx context.Context, idleSince time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(sweepQuery), idleSince.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

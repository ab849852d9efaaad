package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/juju/errors"
)

// Dialect is a supported SQL engine.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	bucket     TEXT NOT NULL,
	record_key TEXT NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (bucket, record_key)
)`

// SQL keeps every bucket in one records table keyed by (bucket, record_key).
type SQL struct {
	db      *DB
	dialect Dialect
}

// OpenSQL connects and creates the records table if needed.
func OpenSQL(dialect Dialect, dsn string) (*SQL, error) {
	driver := "pgx"
	if dialect == DialectSQLite {
		driver = "sqlite3"
		if dsn == "" {
			dsn = "data/amalnama.sqlite"
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Annotate(err, "create data dir")
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	}
	db, err := NewDB(driver, dsn)
	if err != nil {
		_ = db.Close()
		return nil, errors.Annotatef(err, "connect %s", dialect)
	}
	if _, err := db.Client.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "migrate records table")
	}
	return &SQL{db: db, dialect: dialect}, nil
}

// rebind rewrites $n placeholders for SQLite.
func (s *SQL) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	for i := 9; i >= 1; i-- {
		query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), "?")
	}
	return query
}

func (s *SQL) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var payload string
	err := s.db.Client.QueryRowContext(ctx, s.rebind(
		`SELECT payload FROM records WHERE bucket = $1 AND record_key = $2`), bucket, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(bucket, key)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "select %s/%s", bucket, key)
	}
	return []byte(payload), nil
}

func (s *SQL) Put(ctx context.Context, bucket, key string, value []byte) error {
	_, err := s.db.Client.ExecContext(ctx, s.rebind(`
		INSERT INTO records (bucket, record_key, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (bucket, record_key) DO UPDATE SET payload = excluded.payload
	`), bucket, key, string(value))
	return errors.Annotatef(err, "upsert %s/%s", bucket, key)
}

func (s *SQL) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.db.Client.ExecContext(ctx, s.rebind(
		`DELETE FROM records WHERE bucket = $1 AND record_key = $2`), bucket, key)
	return errors.Annotatef(err, "delete %s/%s", bucket, key)
}

func (s *SQL) Scan(ctx context.Context, bucket, prefix string) ([]Entry, error) {
	rows, err := s.db.Client.QueryContext(ctx, s.rebind(`
		SELECT record_key, payload FROM records
		WHERE bucket = $1 AND substr(record_key, 1, $2) = $3
	`), bucket, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, errors.Annotatef(err, "scan %s", bucket)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, Entry{Key: key, Value: []byte(payload)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	// Postgres orders text by the database collation; keys compare bytewise
	// on every other backend.
	sortEntries(out)
	return out, nil
}

func (s *SQL) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := s.db.Client.ExecContext(ctx, s.rebind(`DELETE FROM records WHERE bucket = $1`), bucket)
	return errors.Annotatef(err, "clear %s", bucket)
}

func (s *SQL) Close() error {
	return s.db.Close()
}

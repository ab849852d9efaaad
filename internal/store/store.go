// Package store persists records in a bucketed key-value backend.
package store

import (
	"context"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("amalnama.store")

// Collection keys, shared with the browser backup format.
const (
	UsersKey         = "amal_users"
	CoursesKey       = "amal_courses"
	AttendanceKey    = "amal_attendance"
	GradesKey        = "amal_grades"
	NotificationsKey = "amal_notifications"
	AuditLogKey      = "amal_audit_log"
	CurrentUserKey   = "amal_current_user"
	SeededKey        = "amal_seeded"
)

// MetaBucket holds single-value keys such as the seeded flag.
const MetaBucket = "amal_meta"

// Entry is one key/value pair returned by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Backend is a bucketed key-value store. Implementations are safe for
// concurrent use. Get returns an error satisfying errors.Is(err,
// errors.NotFound) for missing keys; Delete of a missing key is not an error.
type Backend interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, value []byte) error
	Delete(ctx context.Context, bucket, key string) error
	// Scan returns every entry whose key starts with prefix, ordered by key.
	Scan(ctx context.Context, bucket, prefix string) ([]Entry, error)
	DeleteBucket(ctx context.Context, bucket string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	BoltPath    string
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string
	RedisPrefix string
}

// Open returns the backend named by opts.Backend.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case "", "bolt":
		return OpenBolt(opts.BoltPath)
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQL(DialectSQLite, opts.SQLitePath)
	case "postgres":
		return OpenSQL(DialectPostgres, opts.DatabaseURL)
	case "redis":
		return NewRedisBackend(NewRedis(opts.RedisAddr).Client, opts.RedisPrefix), nil
	}
	return nil, errors.NotValidf("store backend %q", opts.Backend)
}

// Key joins key parts with the separator used by composite keys. Separators
// and backslashes inside a part are escaped, so Key("a|b") never shares the
// prefix Key("a")+"|".
func Key(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = keyEscaper.Replace(p)
	}
	return strings.Join(escaped, "|")
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// indexEntry is the index bucket key for a record: the already-composed index
// key followed by the escaped primary key.
func indexEntry(indexKey, primary string) string {
	return indexKey + "|" + keyEscaper.Replace(primary)
}

func notFound(bucket, key string) error {
	return errors.NotFoundf("%s/%s", bucket, key)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}

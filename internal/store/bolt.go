package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	bolt "go.etcd.io/bbolt"
)

// Bolt stores each bucket as a bbolt bucket in a single file.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database file at path.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		path = "data/amalnama.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Annotate(err, "create data dir")
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Annotatef(err, "open bolt %s", path)
	}
	logger.Debugf("opened bolt store at %s", path)
	return &Bolt{db: db}, nil
}

func (b *Bolt) Get(_ context.Context, bucket, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return notFound(bucket, key)
		}
		v := bkt.Get([]byte(key))
		if v == nil {
			return notFound(bucket, key)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (b *Bolt) Put(_ context.Context, bucket, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return bkt.Put([]byte(key), value)
	})
}

func (b *Bolt) Delete(_ context.Context, bucket, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}
		return bkt.Delete([]byte(key))
	})
}

// Scan collects matches inside a read transaction and returns them after it
// closes, so callers may write to the store while iterating.
func (b *Bolt) Scan(_ context.Context, bucket, prefix string) ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}
		p := []byte(prefix)
		c := bkt.Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			out = append(out, Entry{Key: string(k), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	return out, err
}

func (b *Bolt) DeleteBucket(_ context.Context, bucket string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(bucket))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

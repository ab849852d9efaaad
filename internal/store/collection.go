package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/im7mortal/kmutex"
	"github.com/juju/errors"
)

// Index is a secondary index: Key derives the parts of a record's index key.
// Parts are escaped when composed, so an ID containing the separator never
// matches a lookup for a shorter ID.
type Index[T any] struct {
	Name string
	Key  func(T) []string
}

func (idx Index[T]) entry(v T, primary string) string {
	return indexEntry(Key(idx.Key(v)...), primary)
}

// Collection is a typed set of JSON records in one bucket. Writes to the same
// primary key are serialized; Replace excludes all other operations.
type Collection[T any] struct {
	backend Backend
	bucket  string
	key     func(T) string
	indexes []Index[T]

	keys *kmutex.Kmutex
	mu   sync.RWMutex
}

// NewCollection binds a collection to bucket on b.
func NewCollection[T any](b Backend, bucket string, key func(T) string, indexes ...Index[T]) *Collection[T] {
	return &Collection[T]{
		backend: b,
		bucket:  bucket,
		key:     key,
		indexes: indexes,
		keys:    kmutex.New(),
	}
}

// Bucket is the collection key.
func (c *Collection[T]) Bucket() string { return c.bucket }

func (c *Collection[T]) indexBucket(idx Index[T]) string {
	return c.bucket + "." + idx.Name
}

// Get returns the record stored under key.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.get(ctx, key)
}

func (c *Collection[T]) get(ctx context.Context, key string) (T, error) {
	var v T
	raw, err := c.backend.Get(ctx, c.bucket, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Annotatef(err, "decode %s/%s", c.bucket, key)
	}
	return v, nil
}

// Put inserts or replaces v under its primary key.
func (c *Collection[T]) Put(ctx context.Context, v T) error {
	_, err := c.Update(ctx, c.key(v), func(T, bool) (T, error) { return v, nil })
	return err
}

// Update applies fn to the current record under key while holding the key
// lock and stores the result. exists is false when there is no record.
func (c *Collection[T]) Update(ctx context.Context, key string, fn func(cur T, exists bool) (T, error)) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.keys.Lock(key)
	defer c.keys.Unlock(key)

	cur, err := c.get(ctx, key)
	exists := err == nil
	if err != nil && !errors.Is(err, errors.NotFound) {
		return cur, err
	}
	next, err := fn(cur, exists)
	if err != nil {
		return next, err
	}
	if nk := c.key(next); nk != key {
		return next, errors.NotValidf("key change from %q to %q", key, nk)
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return next, errors.Annotatef(err, "encode %s/%s", c.bucket, key)
	}
	if exists {
		if err := c.dropStaleIndexes(ctx, key, cur, next); err != nil {
			return next, err
		}
	}
	if err := c.backend.Put(ctx, c.bucket, key, raw); err != nil {
		return next, errors.Annotatef(err, "put %s/%s", c.bucket, key)
	}
	for _, idx := range c.indexes {
		if err := c.backend.Put(ctx, c.indexBucket(idx), idx.entry(next, key), []byte(key)); err != nil {
			return next, errors.Annotatef(err, "index %s", c.indexBucket(idx))
		}
	}
	return next, nil
}

func (c *Collection[T]) dropStaleIndexes(ctx context.Context, key string, cur, next T) error {
	for _, idx := range c.indexes {
		old := idx.entry(cur, key)
		if old == idx.entry(next, key) {
			continue
		}
		if err := c.backend.Delete(ctx, c.indexBucket(idx), old); err != nil {
			return errors.Annotatef(err, "unindex %s", c.indexBucket(idx))
		}
	}
	return nil
}

// Delete removes the record under key and its index entries.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.keys.Lock(key)
	defer c.keys.Unlock(key)

	cur, err := c.get(ctx, key)
	if errors.Is(err, errors.NotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, idx := range c.indexes {
		if err := c.backend.Delete(ctx, c.indexBucket(idx), idx.entry(cur, key)); err != nil {
			return errors.Annotatef(err, "unindex %s", c.indexBucket(idx))
		}
	}
	return errors.Annotatef(c.backend.Delete(ctx, c.bucket, key), "delete %s/%s", c.bucket, key)
}

// List returns every record ordered by primary key.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	return c.ListByPrefix(ctx, "")
}

// ListByPrefix returns the records whose primary key starts with prefix.
func (c *Collection[T]) ListByPrefix(ctx context.Context, prefix string) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, err := c.backend.Scan(ctx, c.bucket, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			logger.Warningf("skipping undecodable record %s/%s: %v", c.bucket, e.Key, err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Lookup returns the records whose index key for the named index starts with
// the given parts. A trailing separator is added so "CS-1" never matches
// "CS-101".
func (c *Collection[T]) Lookup(ctx context.Context, index string, parts ...string) ([]T, error) {
	var idx *Index[T]
	for i := range c.indexes {
		if c.indexes[i].Name == index {
			idx = &c.indexes[i]
		}
	}
	if idx == nil {
		return nil, errors.NotFoundf("index %s.%s", c.bucket, index)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, err := c.backend.Scan(ctx, c.indexBucket(*idx), Key(parts...)+"|")
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		v, err := c.get(ctx, string(e.Value))
		if errors.Is(err, errors.NotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Dump serializes the whole collection as a JSON array.
func (c *Collection[T]) Dump(ctx context.Context) (string, error) {
	all, err := c.List(ctx)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(all)
	if err != nil {
		return "", errors.Annotatef(err, "encode %s", c.bucket)
	}
	return string(raw), nil
}

// Replace discards the collection and its indexes and loads the records in
// raw, a JSON array as produced by Dump.
func (c *Collection[T]) Replace(ctx context.Context, raw string) error {
	var records []T
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return errors.NotValidf("%s payload: %v", c.bucket, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backend.DeleteBucket(ctx, c.bucket); err != nil {
		return errors.Annotatef(err, "clear %s", c.bucket)
	}
	for _, idx := range c.indexes {
		if err := c.backend.DeleteBucket(ctx, c.indexBucket(idx)); err != nil {
			return errors.Annotatef(err, "clear %s", c.indexBucket(idx))
		}
	}
	for _, v := range records {
		key := c.key(v)
		data, err := json.Marshal(v)
		if err != nil {
			return errors.Annotatef(err, "encode %s/%s", c.bucket, key)
		}
		if err := c.backend.Put(ctx, c.bucket, key, data); err != nil {
			return errors.Annotatef(err, "put %s/%s", c.bucket, key)
		}
		for _, idx := range c.indexes {
			if err := c.backend.Put(ctx, c.indexBucket(idx), idx.entry(v, key), []byte(key)); err != nil {
				return errors.Annotatef(err, "index %s", c.indexBucket(idx))
			}
		}
	}
	logger.Infof("replaced %s with %d records", c.bucket, len(records))
	return nil
}

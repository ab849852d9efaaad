package store

import (
	"context"
	"encoding/json"

	"github.com/juju/errors"
)

// Flag reports the boolean stored under key in the meta bucket.
func Flag(ctx context.Context, b Backend, key string) (bool, error) {
	raw, err := b.Get(ctx, MetaBucket, key)
	if errors.Is(err, errors.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, errors.Annotatef(err, "decode %s", key)
	}
	return v, nil
}

// SetFlag stores a boolean under key in the meta bucket.
func SetFlag(ctx context.Context, b Backend, key string, v bool) error {
	raw, _ := json.Marshal(v)
	return b.Put(ctx, MetaBucket, key, raw)
}

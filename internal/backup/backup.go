// Package backup exports and restores the whole store in the browser
// backup format: {timestamp, data: {<collection key>: <JSON string>}}.
package backup

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"amalnama/internal/store"
)

var logger = loggo.GetLogger("amalnama.backup")

// Source is a collection that can be dumped and replaced wholesale.
type Source interface {
	Bucket() string
	Dump(ctx context.Context) (string, error)
	Replace(ctx context.Context, raw string) error
}

// Document is one backup.
type Document struct {
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data"`
}

// Result lists what Import did with each key.
type Result struct {
	Restored []string `json:"restored"`
	Ignored  []string `json:"ignored"`
}

// Service exports and imports the registered collections and the seeded flag.
type Service struct {
	backend store.Backend
	sources map[string]Source
	clock   clock.Clock
}

// New creates a backup service over the given collections.
func New(b store.Backend, clk clock.Clock, sources ...Source) *Service {
	m := make(map[string]Source, len(sources))
	for _, s := range sources {
		m[s.Bucket()] = s
	}
	return &Service{backend: b, sources: m, clock: clk}
}

func (s *Service) keys() []string {
	keys := make([]string, 0, len(s.sources))
	for k := range s.sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func empty(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || raw == "null" || raw == "[]"
}

// Export dumps every non-empty collection and the seeded flag.
func (s *Service) Export(ctx context.Context) (Document, error) {
	doc := Document{Timestamp: s.clock.Now().UTC(), Data: map[string]string{}}
	for _, key := range s.keys() {
		raw, err := s.sources[key].Dump(ctx)
		if err != nil {
			return Document{}, errors.Annotatef(err, "export %s", key)
		}
		if !empty(raw) {
			doc.Data[key] = raw
		}
	}
	seeded, err := store.Flag(ctx, s.backend, store.SeededKey)
	if err != nil {
		return Document{}, errors.Annotate(err, "export seeded flag")
	}
	if seeded {
		doc.Data[store.SeededKey] = "true"
	}
	return doc, nil
}

// Import replaces every collection present in doc. Payloads are checked
// before anything is replaced; unknown keys are ignored.
func (s *Service) Import(ctx context.Context, doc Document) (Result, error) {
	if doc.Data == nil {
		return Result{}, errors.NotValidf("backup without data")
	}
	var res Result
	keys := make([]string, 0, len(doc.Data))
	for k := range doc.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		raw := strings.TrimSpace(doc.Data[k])
		switch {
		case k == store.SeededKey:
			if _, err := strconv.ParseBool(raw); err != nil {
				return Result{}, errors.NotValidf("%s value %q", k, raw)
			}
		case s.sources[k] != nil:
			if !json.Valid([]byte(raw)) || !(raw == "null" || strings.HasPrefix(raw, "[")) {
				return Result{}, errors.NotValidf("%s payload", k)
			}
		}
	}

	for _, k := range keys {
		raw := strings.TrimSpace(doc.Data[k])
		switch {
		case k == store.SeededKey:
			v, _ := strconv.ParseBool(raw)
			if err := store.SetFlag(ctx, s.backend, store.SeededKey, v); err != nil {
				return res, errors.Annotate(err, "restore seeded flag")
			}
		case s.sources[k] != nil:
			if err := s.sources[k].Replace(ctx, raw); err != nil {
				return res, errors.Annotatef(err, "restore %s", k)
			}
		default:
			res.Ignored = append(res.Ignored, k)
			continue
		}
		res.Restored = append(res.Restored, k)
	}
	logger.Infof("restored %d keys from backup of %s", len(res.Restored), doc.Timestamp.Format(time.RFC3339))
	return res, nil
}

// Write encodes doc as indented JSON.
func Write(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Trace(enc.Encode(doc))
}

// Read decodes a backup document.
func Read(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, errors.NewNotValid(err, "backup document")
	}
	return doc, nil
}

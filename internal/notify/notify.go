// Package notify stores user-targeted alerts.
package notify

import (
	"context"
	"sort"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"amalnama/internal/ident"
	"amalnama/internal/metrics"
	"amalnama/internal/model"
	"amalnama/internal/store"
)

// Sink creates and queries notifications.
type Sink struct {
	notes *store.Collection[model.Notification]
	ids   ident.Generator
	clock clock.Clock
}

// NewSink creates a sink backed by b.
func NewSink(b store.Backend, ids ident.Generator, clk clock.Clock) *Sink {
	return &Sink{
		notes: store.NewCollection(b, store.NotificationsKey,
			func(n model.Notification) string { return n.ID },
			store.Index[model.Notification]{Name: "user", Key: func(n model.Notification) []string { return []string{n.UserID} }},
		),
		ids:   ids,
		clock: clk,
	}
}

// Collection exposes the underlying records for backup.
func (s *Sink) Collection() *store.Collection[model.Notification] { return s.notes }

// Create writes an unread notification for userID.
func (s *Sink) Create(ctx context.Context, userID string, severity model.Severity, title, message string) (model.Notification, error) {
	if userID == "" {
		return model.Notification{}, errors.NotValidf("empty user id")
	}
	if !severity.Valid() {
		return model.Notification{}, errors.NotValidf("severity %d", int(severity))
	}
	n := model.Notification{
		ID:        s.ids.New(ident.Notification),
		UserID:    userID,
		Type:      severity,
		Title:     title,
		Message:   message,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.notes.Put(ctx, n); err != nil {
		return model.Notification{}, errors.Annotate(err, "create notification")
	}
	metrics.NotificationsCreated.WithLabelValues(severity.String()).Inc()
	return n, nil
}

// ByUser returns the user's notifications, newest first.
func (s *Sink) ByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	notes, err := s.notes.Lookup(ctx, "user", userID)
	if err != nil {
		return nil, err
	}
	newestFirst(notes)
	return notes, nil
}

// All returns every notification, newest first.
func (s *Sink) All(ctx context.Context) ([]model.Notification, error) {
	notes, err := s.notes.List(ctx)
	if err != nil {
		return nil, err
	}
	newestFirst(notes)
	return notes, nil
}

// Get returns a single notification.
func (s *Sink) Get(ctx context.Context, id string) (model.Notification, error) {
	return s.notes.Get(ctx, id)
}

// UnreadCount counts the user's unread notifications.
func (s *Sink) UnreadCount(ctx context.Context, userID string) (int, error) {
	notes, err := s.notes.Lookup(ctx, "user", userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, note := range notes {
		if !note.Read {
			n++
		}
	}
	return n, nil
}

// MarkAsRead sets the read flag. Unknown ids are ignored.
func (s *Sink) MarkAsRead(ctx context.Context, id string) error {
	_, err := s.notes.Update(ctx, id, func(n model.Notification, exists bool) (model.Notification, error) {
		if !exists {
			return n, errors.NotFoundf("notification %s", id)
		}
		n.Read = true
		return n, nil
	})
	if errors.Is(err, errors.NotFound) {
		return nil
	}
	return err
}

// MarkAllAsRead sets the read flag on every notification of userID.
func (s *Sink) MarkAllAsRead(ctx context.Context, userID string) error {
	notes, err := s.notes.Lookup(ctx, "user", userID)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if n.Read {
			continue
		}
		if err := s.MarkAsRead(ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a notification.
func (s *Sink) Delete(ctx context.Context, id string) error {
	return s.notes.Delete(ctx, id)
}

func newestFirst(notes []model.Notification) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
}

// Package audit keeps the append-only administrative action log.
package audit

import (
	"context"
	"sort"
	"strings"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"amalnama/internal/ident"
	"amalnama/internal/model"
	"amalnama/internal/store"
)

// Action tags.
const (
	UserLogin         = "USER_LOGIN"
	UserLogout        = "USER_LOGOUT"
	AttendanceMarked  = "ATTENDANCE_MARKED"
	GradePosted       = "GRADE_POSTED"
	GradeModified     = "GRADE_MODIFIED"
	UserCreated       = "USER_CREATED"
	UserUpdated       = "USER_UPDATED"
	UserDeleted       = "USER_DELETED"
	CourseCreated     = "COURSE_CREATED"
	CourseDeleted     = "COURSE_DELETED"
	StudentEnrolled   = "STUDENT_ENROLLED"
	StudentUnenrolled = "STUDENT_UNENROLLED"
	WarningSent       = "WARNING_SENT"
)

// Log appends and queries audit entries. There is no update or delete.
type Log struct {
	entries *store.Collection[model.AuditEntry]
	ids     ident.Generator
	clock   clock.Clock
}

// New creates a log backed by b.
func New(b store.Backend, ids ident.Generator, clk clock.Clock) *Log {
	return &Log{
		entries: store.NewCollection(b, store.AuditLogKey, func(e model.AuditEntry) string { return e.ID }),
		ids:     ids,
		clock:   clk,
	}
}

// Collection exposes the underlying records for backup.
func (l *Log) Collection() *store.Collection[model.AuditEntry] { return l.entries }

// Add appends an entry stamped with the current time.
func (l *Log) Add(ctx context.Context, action, userID, userName, details string, flagged bool) (model.AuditEntry, error) {
	if action == "" {
		return model.AuditEntry{}, errors.NotValidf("empty audit action")
	}
	e := model.AuditEntry{
		ID:        l.ids.New(ident.Audit),
		Action:    action,
		UserID:    userID,
		UserName:  userName,
		Details:   details,
		Flagged:   flagged,
		Timestamp: l.clock.Now().UTC(),
	}
	if err := l.entries.Put(ctx, e); err != nil {
		return model.AuditEntry{}, errors.Annotate(err, "append audit entry")
	}
	return e, nil
}

// Record appends an unflagged entry on behalf of actor.
func (l *Log) Record(ctx context.Context, actor model.User, action, details string) (model.AuditEntry, error) {
	return l.Add(ctx, action, actor.ID, actor.Name, details, false)
}

// All returns every entry, newest first.
func (l *Log) All(ctx context.Context) ([]model.AuditEntry, error) {
	all, err := l.entries.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	return all, nil
}

// Flagged returns flagged entries, newest first.
func (l *Log) Flagged(ctx context.Context) ([]model.AuditEntry, error) {
	return l.filter(ctx, func(e model.AuditEntry) bool { return e.Flagged })
}

// Search matches query case-insensitively against action, user name and details.
func (l *Log) Search(ctx context.Context, query string) ([]model.AuditEntry, error) {
	q := strings.ToLower(query)
	return l.filter(ctx, func(e model.AuditEntry) bool {
		return strings.Contains(strings.ToLower(e.Action), q) ||
			strings.Contains(strings.ToLower(e.UserName), q) ||
			strings.Contains(strings.ToLower(e.Details), q)
	})
}

func (l *Log) filter(ctx context.Context, keep func(model.AuditEntry) bool) ([]model.AuditEntry, error) {
	all, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

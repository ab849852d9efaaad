package attendance

import (
	"context"
	"strings"

	"github.com/juju/errors"

	"amalnama/internal/model"
	"amalnama/internal/store"
)

// Repository persists attendance events keyed by student|course|date.
type Repository struct {
	events *store.Collection[model.AttendanceEvent]
}

// NewRepository creates a repository over b.
func NewRepository(b store.Backend) *Repository {
	return &Repository{
		events: store.NewCollection(b, store.AttendanceKey, eventKey,
			store.Index[model.AttendanceEvent]{Name: "course", Key: func(e model.AttendanceEvent) []string {
				return []string{e.CourseID, e.Date, e.StudentID}
			}},
			store.Index[model.AttendanceEvent]{Name: "date", Key: func(e model.AttendanceEvent) []string {
				return []string{e.Date, e.CourseID, e.StudentID}
			}},
		),
	}
}

func eventKey(e model.AttendanceEvent) string {
	return store.Key(e.StudentID, e.CourseID, e.Date)
}

// Collection exposes the underlying records for seeding and backup.
func (r *Repository) Collection() *store.Collection[model.AttendanceEvent] { return r.events }

// Upsert writes evt under its composite key. An existing event keeps its ID;
// newID is called only when the key is new.
func (r *Repository) Upsert(ctx context.Context, evt model.AttendanceEvent, newID func() string) (model.AttendanceEvent, error) {
	for _, part := range []string{evt.StudentID, evt.CourseID, evt.Date} {
		if strings.Contains(part, "|") {
			return model.AttendanceEvent{}, errors.NotValidf("identifier %q", part)
		}
	}
	return r.events.Update(ctx, eventKey(evt), func(cur model.AttendanceEvent, exists bool) (model.AttendanceEvent, error) {
		if exists {
			evt.ID = cur.ID
		} else {
			evt.ID = newID()
		}
		return evt, nil
	})
}

// Get returns the event for a composite key.
func (r *Repository) Get(ctx context.Context, studentID, courseID, date string) (model.AttendanceEvent, error) {
	return r.events.Get(ctx, store.Key(studentID, courseID, date))
}

// ByStudent returns every event for a student.
func (r *Repository) ByStudent(ctx context.Context, studentID string) ([]model.AttendanceEvent, error) {
	return r.events.ListByPrefix(ctx, store.Key(studentID)+"|")
}

// ByStudentCourse returns a student's events in one course, oldest first.
func (r *Repository) ByStudentCourse(ctx context.Context, studentID, courseID string) ([]model.AttendanceEvent, error) {
	return r.events.ListByPrefix(ctx, store.Key(studentID, courseID)+"|")
}

// ByCourse returns every event of a course ordered by date.
func (r *Repository) ByCourse(ctx context.Context, courseID string) ([]model.AttendanceEvent, error) {
	return r.events.Lookup(ctx, "course", courseID)
}

// ForCourseAndDate returns one session's marks.
func (r *Repository) ForCourseAndDate(ctx context.Context, courseID, date string) ([]model.AttendanceEvent, error) {
	return r.events.Lookup(ctx, "course", courseID, date)
}

// ByDate returns every mark made for date across courses.
func (r *Repository) ByDate(ctx context.Context, date string) ([]model.AttendanceEvent, error) {
	return r.events.Lookup(ctx, "date", date)
}

// All returns every event.
func (r *Repository) All(ctx context.Context) ([]model.AttendanceEvent, error) {
	return r.events.List(ctx)
}

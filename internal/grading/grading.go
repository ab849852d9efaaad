// Package grading stores assessment scores and derives course totals,
// letter grades and CGPA from them.
package grading

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"amalnama/internal/audit"
	"amalnama/internal/ident"
	"amalnama/internal/mail"
	"amalnama/internal/metrics"
	"amalnama/internal/model"
	"amalnama/internal/store"
	"amalnama/internal/validate"
)

var logger = loggo.GetLogger("amalnama.grading")

// Directory resolves users and courses.
type Directory interface {
	Get(ctx context.Context, id string) (model.User, error)
	Course(ctx context.Context, id string) (model.Course, error)
	ByStudent(ctx context.Context, studentID string) ([]model.Course, error)
}

// Notifier writes user notifications.
type Notifier interface {
	Create(ctx context.Context, userID string, severity model.Severity, title, message string) (model.Notification, error)
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, actor model.User, action, details string) (model.AuditEntry, error)
}

// Outbox queues outbound email without blocking.
type Outbox interface {
	Enqueue(ctx context.Context, req mail.Request) error
}

// Options tunes optional side effects.
type Options struct {
	// GradeEmails sends a grade-notification email on every Add.
	GradeEmails bool
}

// Service is the grade aggregator.
type Service struct {
	grades *store.Collection[model.GradeEvent]
	dir    Directory
	notes  Notifier
	audit  Auditor
	outbox Outbox
	ids    ident.Generator
	clock  clock.Clock
	opts   Options
}

// NewService creates the aggregator over b. outbox may be nil.
func NewService(b store.Backend, dir Directory, notes Notifier, audit Auditor, outbox Outbox, ids ident.Generator, clk clock.Clock, opts Options) *Service {
	return &Service{
		grades: store.NewCollection(b, store.GradesKey,
			func(g model.GradeEvent) string { return g.ID },
			store.Index[model.GradeEvent]{Name: "student", Key: func(g model.GradeEvent) []string {
				return []string{g.StudentID, g.CourseID}
			}},
			store.Index[model.GradeEvent]{Name: "course", Key: func(g model.GradeEvent) []string { return []string{g.CourseID} }},
		),
		dir:    dir,
		notes:  notes,
		audit:  audit,
		outbox: outbox,
		ids:    ids,
		clock:  clk,
		opts:   opts,
	}
}

// Collection exposes the underlying records for seeding and backup.
func (s *Service) Collection() *store.Collection[model.GradeEvent] { return s.grades }

// Get returns one grade.
func (s *Service) Get(ctx context.Context, id string) (model.GradeEvent, error) {
	return s.grades.Get(ctx, id)
}

// ByStudent returns every grade of a student.
func (s *Service) ByStudent(ctx context.Context, studentID string) ([]model.GradeEvent, error) {
	return s.grades.Lookup(ctx, "student", studentID)
}

// ByStudentAndCourse returns a student's grades in one course.
func (s *Service) ByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]model.GradeEvent, error) {
	return s.grades.Lookup(ctx, "student", studentID, courseID)
}

// ByCourse returns every grade posted in a course.
func (s *Service) ByCourse(ctx context.Context, courseID string) ([]model.GradeEvent, error) {
	return s.grades.Lookup(ctx, "course", courseID)
}

// CourseTotal returns the weighted percentage over the assessments posted so
// far. Missing assessments do not count against the student. No grades
// yields 0.
func (s *Service) CourseTotal(ctx context.Context, studentID, courseID string) (float64, error) {
	grades, err := s.ByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return 0, errors.Annotatef(err, "grades of %s in %s", studentID, courseID)
	}
	return courseTotal(grades), nil
}

func courseTotal(grades []model.GradeEvent) float64 {
	var score, weight float64
	for _, g := range grades {
		if g.MaxMarks == 0 {
			continue
		}
		score += g.ObtainedMarks / g.MaxMarks * g.Weight
		weight += g.Weight
	}
	if weight <= 0 {
		return 0
	}
	return score / weight * 100
}

// CGPA returns the credit-weighted grade point average over the student's
// enrolled courses, formatted with two decimals.
func (s *Service) CGPA(ctx context.Context, studentID string) (string, error) {
	courses, err := s.dir.ByStudent(ctx, studentID)
	if err != nil {
		return "", errors.Annotatef(err, "courses of %s", studentID)
	}
	var points float64
	var credits int
	for _, c := range courses {
		total, err := s.CourseTotal(ctx, studentID, c.ID)
		if err != nil {
			return "", err
		}
		points += GradePoints(LetterGrade(total)) * float64(c.CreditHours)
		credits += c.CreditHours
	}
	if credits == 0 {
		return "0.00", nil
	}
	return strconv.FormatFloat(points/float64(credits), 'f', 2, 64), nil
}

// Add posts a new grade and notifies the student. Duplicate assessment
// labels are accepted.
func (s *Service) Add(ctx context.Context, g model.GradeEvent) (model.GradeEvent, error) {
	if err := validate.Struct(g); err != nil {
		return model.GradeEvent{}, err
	}
	g.ID = s.ids.New(ident.Grade)
	g.Percentage = g.ObtainedMarks / g.MaxMarks * 100
	g.PostedAt = s.clock.Now().UTC()
	if err := s.grades.Put(ctx, g); err != nil {
		return model.GradeEvent{}, errors.Annotatef(err, "add grade for %s", g.StudentID)
	}
	metrics.GradesPosted.WithLabelValues("add").Inc()

	courseName := g.CourseID
	if c, err := s.dir.Course(ctx, g.CourseID); err == nil {
		courseName = c.Name
	} else {
		logger.Warningf("grade %s references course %s: %v", g.ID, g.CourseID, err)
	}
	if _, err := s.notes.Create(ctx, g.StudentID, model.SeverityInfo, "New Grade Posted",
		fmt.Sprintf("%s marks for %s have been posted.", g.AssessmentType, courseName)); err != nil {
		logger.Errorf("grade notification for %s: %v", g.StudentID, err)
	}
	if s.opts.GradeEmails && s.outbox != nil {
		s.emailGrade(ctx, g, courseName)
	}
	return g, nil
}

func (s *Service) emailGrade(ctx context.Context, g model.GradeEvent, courseName string) {
	student, err := s.dir.Get(ctx, g.StudentID)
	if err != nil || student.Email == "" {
		return
	}
	req := mail.GradeNotification(student.Email, student.Name, courseName, g.AssessmentType, g.ObtainedMarks, g.MaxMarks, g.Percentage)
	if err := s.outbox.Enqueue(ctx, req); err != nil {
		logger.Errorf("grade email for %s: %v", g.StudentID, err)
	}
}

// GradeUpdate holds the fields to merge into a grade. Nil fields are kept.
type GradeUpdate struct {
	AssessmentType *string  `json:"assessmentType"`
	Weight         *float64 `json:"weight"`
	MaxMarks       *float64 `json:"maxMarks"`
	ObtainedMarks  *float64 `json:"obtainedMarks"`
}

// Update merges upd into grade id. A non-zero ObtainedMarks recomputes the
// percentage against the maximum marks stored before this update. No
// notification is sent.
func (s *Service) Update(ctx context.Context, id string, upd GradeUpdate) (model.GradeEvent, error) {
	g, err := s.grades.Update(ctx, id, func(cur model.GradeEvent, exists bool) (model.GradeEvent, error) {
		if !exists {
			return cur, errors.NotFoundf("grade %s", id)
		}
		next := cur
		if upd.AssessmentType != nil {
			next.AssessmentType = *upd.AssessmentType
		}
		if upd.Weight != nil {
			next.Weight = *upd.Weight
		}
		if upd.MaxMarks != nil {
			next.MaxMarks = *upd.MaxMarks
		}
		if upd.ObtainedMarks != nil {
			next.ObtainedMarks = *upd.ObtainedMarks
			if *upd.ObtainedMarks != 0 && cur.MaxMarks != 0 {
				next.Percentage = *upd.ObtainedMarks / cur.MaxMarks * 100
			}
		}
		if err := validate.Struct(next); err != nil {
			return cur, err
		}
		return next, nil
	})
	if err != nil {
		return model.GradeEvent{}, err
	}
	metrics.GradesPosted.WithLabelValues("update").Inc()
	return g, nil
}

// Modify updates a grade on behalf of actor and audits the change.
func (s *Service) Modify(ctx context.Context, actor model.User, id string, upd GradeUpdate) (model.GradeEvent, error) {
	g, err := s.Update(ctx, id, upd)
	if err != nil {
		return model.GradeEvent{}, err
	}
	s.record(ctx, actor, audit.GradeModified,
		fmt.Sprintf("Modified %s grade for %s in %s", g.AssessmentType, g.StudentID, g.CourseID))
	return g, nil
}

// CourseStats summarizes the roster's course totals.
type CourseStats struct {
	Average int `json:"average"`
	Highest int `json:"highest"`
	Lowest  int `json:"lowest"`
}

// CourseStats returns nil for an unknown course and zeros for an empty
// roster.
func (s *Service) CourseStats(ctx context.Context, courseID string) (*CourseStats, error) {
	course, err := s.dir.Course(ctx, courseID)
	if errors.Is(err, errors.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(course.Students) == 0 {
		return &CourseStats{}, nil
	}
	var sum float64
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, id := range course.Students {
		total, err := s.CourseTotal(ctx, id, courseID)
		if err != nil {
			return nil, err
		}
		sum += total
		hi = math.Max(hi, total)
		lo = math.Min(lo, total)
	}
	return &CourseStats{
		Average: int(math.Round(sum / float64(len(course.Students)))),
		Highest: int(math.Round(hi)),
		Lowest:  int(math.Round(lo)),
	}, nil
}

// SheetEntry is one student's marks on a grade sheet.
type SheetEntry struct {
	StudentID     string  `json:"studentId" binding:"required"`
	ObtainedMarks float64 `json:"obtainedMarks"`
}

// Post saves a grade sheet for one assessment. Existing grades with the
// same label are updated in place, new ones take their weight from
// DefaultWeights.
func (s *Service) Post(ctx context.Context, actor model.User, courseID, assessment string, maxMarks float64, entries []SheetEntry) (int, error) {
	if courseID == "" || assessment == "" {
		return 0, errors.NotValidf("course and assessment required")
	}
	if maxMarks <= 0 {
		return 0, errors.NotValidf("max marks %v", maxMarks)
	}
	saved := 0
	for _, e := range entries {
		existing, err := s.ByStudentAndCourse(ctx, e.StudentID, courseID)
		if err != nil {
			return saved, err
		}
		obtained := e.ObtainedMarks
		if g, ok := findAssessment(existing, assessment); ok {
			_, err = s.Update(ctx, g.ID, GradeUpdate{ObtainedMarks: &obtained})
		} else {
			_, err = s.Add(ctx, model.GradeEvent{
				StudentID:      e.StudentID,
				CourseID:       courseID,
				AssessmentType: assessment,
				Weight:         DefaultWeights[assessment],
				MaxMarks:       maxMarks,
				ObtainedMarks:  obtained,
				PostedBy:       actor.ID,
			})
		}
		if err != nil {
			return saved, errors.Annotatef(err, "grade for %s", e.StudentID)
		}
		saved++
	}
	s.record(ctx, actor, audit.GradePosted,
		fmt.Sprintf("Posted %s grades for %s - %d students", assessment, courseID, saved))
	return saved, nil
}

func findAssessment(grades []model.GradeEvent, label string) (model.GradeEvent, bool) {
	sort.Slice(grades, func(i, j int) bool { return grades[i].PostedAt.Before(grades[j].PostedAt) })
	for _, g := range grades {
		if g.AssessmentType == label {
			return g, true
		}
	}
	return model.GradeEvent{}, false
}

// CourseResult is one line of a transcript.
type CourseResult struct {
	CourseID    string  `json:"courseId"`
	CourseName  string  `json:"courseName"`
	CreditHours int     `json:"creditHours"`
	Total       float64 `json:"total"`
	Letter      string  `json:"letter"`
	Points      float64 `json:"points"`
}

// Transcript is a student's results across enrolled courses.
type Transcript struct {
	StudentID string         `json:"studentId"`
	Courses   []CourseResult `json:"courses"`
	Credits   int            `json:"credits"`
	CGPA      string         `json:"cgpa"`
}

// Transcript returns per-course results and the CGPA.
func (s *Service) Transcript(ctx context.Context, studentID string) (Transcript, error) {
	courses, err := s.dir.ByStudent(ctx, studentID)
	if err != nil {
		return Transcript{}, errors.Annotatef(err, "courses of %s", studentID)
	}
	t := Transcript{StudentID: studentID, Courses: make([]CourseResult, 0, len(courses))}
	for _, c := range courses {
		total, err := s.CourseTotal(ctx, studentID, c.ID)
		if err != nil {
			return Transcript{}, err
		}
		letter := LetterGrade(total)
		t.Courses = append(t.Courses, CourseResult{
			CourseID:    c.ID,
			CourseName:  c.Name,
			CreditHours: c.CreditHours,
			Total:       math.Round(total*100) / 100,
			Letter:      letter,
			Points:      GradePoints(letter),
		})
		t.Credits += c.CreditHours
	}
	if t.CGPA, err = s.CGPA(ctx, studentID); err != nil {
		return Transcript{}, err
	}
	return t, nil
}

func (s *Service) record(ctx context.Context, actor model.User, action, details string) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(ctx, actor, action, details); err != nil {
		logger.Errorf("audit %s: %v", action, err)
	}
}

// Package directory manages users, courses and enrollment.
package directory

import (
	"context"
	"fmt"
	"sort"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"amalnama/internal/audit"
	"amalnama/internal/auth"
	"amalnama/internal/model"
	"amalnama/internal/store"
	"amalnama/internal/validate"
)

var logger = loggo.GetLogger("amalnama.directory")

// Service owns the user and course collections.
type Service struct {
	users   *store.Collection[model.User]
	courses *store.Collection[model.Course]
	audit   *audit.Log
	clock   clock.Clock
}

// NewService creates a directory backed by b.
func NewService(b store.Backend, log *audit.Log, clk clock.Clock) *Service {
	return &Service{
		users: store.NewCollection(b, store.UsersKey,
			func(u model.User) string { return u.ID },
			store.Index[model.User]{Name: "role", Key: func(u model.User) []string { return []string{string(u.Role)} }},
		),
		courses: store.NewCollection(b, store.CoursesKey,
			func(c model.Course) string { return c.ID },
			store.Index[model.Course]{Name: "teacher", Key: func(c model.Course) []string { return []string{c.TeacherID} }},
		),
		audit: log,
		clock: clk,
	}
}

// Users exposes the user records for seeding and backup.
func (s *Service) Users() *store.Collection[model.User] { return s.users }

// CoursesCollection exposes the course records for seeding and backup.
func (s *Service) CoursesCollection() *store.Collection[model.Course] { return s.courses }

// UserUpdate holds editable profile fields. An empty Password keeps the
// current credential.
type UserUpdate struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department"`
	Password   string `json:"password"`
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (model.User, error) {
	return s.users.Get(ctx, id)
}

// All returns every user ordered by id.
func (s *Service) All(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// ByRole returns the users with role r.
func (s *Service) ByRole(ctx context.Context, r model.Role) ([]model.User, error) {
	return s.users.Lookup(ctx, "role", string(r))
}

// Authenticate returns the user whose id and password match.
func (s *Service) Authenticate(ctx context.Context, id, password string) (model.User, error) {
	if id == "" || password == "" {
		return model.User{}, errors.NotValidf("please enter both ID and password")
	}
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, errors.NotFound) || (err == nil && !auth.CheckPassword(u.Password, password)) {
		return model.User{}, errors.Unauthorizedf("invalid ID or password")
	}
	if err != nil {
		return model.User{}, err
	}
	if !auth.IsHashed(u.Password) {
		s.upgradeCredential(ctx, id, password)
	}
	return u, nil
}

func (s *Service) upgradeCredential(ctx context.Context, id, password string) {
	hash, err := auth.HashPassword(password)
	if err == nil {
		_, err = s.users.Update(ctx, id, func(u model.User, exists bool) (model.User, error) {
			if !exists {
				return u, errors.NotFoundf("user %s", id)
			}
			u.Password = hash
			return u, nil
		})
	}
	if err != nil {
		logger.Warningf("could not upgrade credential for %s: %v", id, err)
	}
}

// Create adds a user. The id must be unused.
func (s *Service) Create(ctx context.Context, actor model.User, u model.User) (model.User, error) {
	if err := validate.Struct(u); err != nil {
		return model.User{}, err
	}
	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return model.User{}, err
	}
	u.Password = hash
	u.CreatedAt = s.clock.Now().UTC()

	created, err := s.users.Update(ctx, u.ID, func(_ model.User, exists bool) (model.User, error) {
		if exists {
			return u, errors.AlreadyExistsf("a user with ID %s", u.ID)
		}
		return u, nil
	})
	if err != nil {
		return model.User{}, err
	}
	s.record(ctx, actor, audit.UserCreated, fmt.Sprintf("Created new %s user: %s (%s)", u.Role, u.Name, u.ID))
	return created, nil
}

// Update edits profile fields of user id.
func (s *Service) Update(ctx context.Context, actor model.User, id string, upd UserUpdate) (model.User, error) {
	if err := validate.Struct(upd); err != nil {
		return model.User{}, err
	}
	var hash string
	if upd.Password != "" {
		h, err := auth.HashPassword(upd.Password)
		if err != nil {
			return model.User{}, err
		}
		hash = h
	}
	updated, err := s.users.Update(ctx, id, func(u model.User, exists bool) (model.User, error) {
		if !exists {
			return u, errors.NotFoundf("user %s", id)
		}
		u.Name = upd.Name
		u.Email = upd.Email
		u.Department = upd.Department
		if hash != "" {
			u.Password = hash
		}
		return u, nil
	})
	if err != nil {
		return model.User{}, err
	}
	s.record(ctx, actor, audit.UserUpdated, fmt.Sprintf("Updated user: %s (%s)", updated.Name, id))
	return updated, nil
}

// Delete removes user id. Attendance, grades and roster entries that refer
// to the user are left in place.
func (s *Service) Delete(ctx context.Context, actor model.User, id string) error {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return errors.Annotatef(err, "delete user %s", id)
	}
	s.record(ctx, actor, audit.UserDeleted, fmt.Sprintf("Deleted user: %s (%s)", u.Name, id))
	return nil
}

// Course returns a course by id.
func (s *Service) Course(ctx context.Context, id string) (model.Course, error) {
	return s.courses.Get(ctx, id)
}

// Courses returns every course ordered by id.
func (s *Service) Courses(ctx context.Context) ([]model.Course, error) {
	return s.courses.List(ctx)
}

// ByTeacher returns the courses taught by teacherID.
func (s *Service) ByTeacher(ctx context.Context, teacherID string) ([]model.Course, error) {
	return s.courses.Lookup(ctx, "teacher", teacherID)
}

// ByStudent returns the courses whose roster contains studentID.
func (s *Service) ByStudent(ctx context.Context, studentID string) ([]model.Course, error) {
	all, err := s.courses.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if c.HasStudent(studentID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// CreateCourse adds a course keyed by its code and taught by an existing teacher.
func (s *Service) CreateCourse(ctx context.Context, actor model.User, c model.Course) (model.Course, error) {
	if err := validate.Struct(c); err != nil {
		return model.Course{}, err
	}
	teacher, err := s.users.Get(ctx, c.TeacherID)
	if errors.Is(err, errors.NotFound) || (err == nil && teacher.Role != model.RoleTeacher) {
		return model.Course{}, errors.NotValidf("teacher %s", c.TeacherID)
	}
	if err != nil {
		return model.Course{}, err
	}
	c.ID = c.Code
	c.TeacherName = teacher.Name
	if c.Department == "" {
		c.Department = teacher.Department
	}
	if c.Department == "" {
		c.Department = "General"
	}
	if c.Semester == 0 {
		c.Semester = 1
	}
	c.Students = uniqueStudents(c.Students)

	created, err := s.courses.Update(ctx, c.ID, func(_ model.Course, exists bool) (model.Course, error) {
		if exists {
			return c, errors.AlreadyExistsf("course %s", c.ID)
		}
		return c, nil
	})
	if err != nil {
		return model.Course{}, err
	}
	s.record(ctx, actor, audit.CourseCreated, fmt.Sprintf("Created new course: %s (%s)", c.Name, c.Code))
	return created, nil
}

// DeleteCourse removes a course. Attendance and grade records are kept.
func (s *Service) DeleteCourse(ctx context.Context, actor model.User, id string) error {
	c, err := s.courses.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.courses.Delete(ctx, id); err != nil {
		return errors.Annotatef(err, "delete course %s", id)
	}
	s.record(ctx, actor, audit.CourseDeleted, fmt.Sprintf("Deleted course: %s (%s)", c.Name, id))
	return nil
}

// Enroll adds studentID to the course roster. Enrolling twice is a no-op.
func (s *Service) Enroll(ctx context.Context, actor model.User, courseID, studentID string) (model.Course, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return model.Course{}, err
	}
	c, err := s.courses.Update(ctx, courseID, func(c model.Course, exists bool) (model.Course, error) {
		if !exists {
			return c, errors.NotFoundf("course %s", courseID)
		}
		if !c.HasStudent(studentID) {
			c.Students = append(c.Students, studentID)
		}
		return c, nil
	})
	if err != nil {
		return model.Course{}, err
	}
	s.record(ctx, actor, audit.StudentEnrolled, fmt.Sprintf("Enrolled %s (%s) in %s", student.Name, studentID, c.Code))
	return c, nil
}

// Unenroll removes studentID from the course roster.
func (s *Service) Unenroll(ctx context.Context, actor model.User, courseID, studentID string) (model.Course, error) {
	c, err := s.courses.Update(ctx, courseID, func(c model.Course, exists bool) (model.Course, error) {
		if !exists {
			return c, errors.NotFoundf("course %s", courseID)
		}
		kept := c.Students[:0]
		for _, id := range c.Students {
			if id != studentID {
				kept = append(kept, id)
			}
		}
		c.Students = kept
		return c, nil
	})
	if err != nil {
		return model.Course{}, err
	}
	name := studentID
	if student, err := s.users.Get(ctx, studentID); err == nil {
		name = student.Name
	}
	s.record(ctx, actor, audit.StudentUnenrolled, fmt.Sprintf("Unenrolled %s (%s) from %s", name, studentID, c.Code))
	return c, nil
}

func (s *Service) student(ctx context.Context, id string) (model.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if u.Role != model.RoleStudent {
		return model.User{}, errors.NotValidf("user %s is a %s, not a student", id, u.Role)
	}
	return u, nil
}

// record writes an audit entry; failures are logged, never returned.
func (s *Service) record(ctx context.Context, actor model.User, action, details string) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(ctx, actor, action, details); err != nil {
		logger.Errorf("audit %s failed: %v", action, err)
	}
}

func uniqueStudents(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

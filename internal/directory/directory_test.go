package directory

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amalnama/internal/audit"
	"amalnama/internal/auth"
	"amalnama/internal/ident"
	"amalnama/internal/model"
	"amalnama/internal/store"
)

var admin = model.User{ID: "A-0001", Name: "Dr. Ahmed Khan", Role: model.RoleAdmin}

func newService(t *testing.T) (*Service, *audit.Log) {
	t.Helper()
	b := store.NewMemory()
	clk := testclock.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	log := audit.New(b, &ident.Sequence{}, clk)
	return NewService(b, log, clk), log
}

func mustCreate(t *testing.T, s *Service, u model.User) model.User {
	t.Helper()
	created, err := s.Create(context.Background(), admin, u)
	require.NoError(t, err)
	return created
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	s, log := newService(t)

	u := mustCreate(t, s, model.User{ID: "T-5678", Name: "Prof. Sarah Ahmed", Email: "sarah.ahmed@university.edu", Password: "teacher123", Role: model.RoleTeacher})
	assert.True(t, auth.IsHashed(u.Password))
	assert.False(t, u.CreatedAt.IsZero())

	_, err := s.Create(ctx, admin, model.User{ID: "T-5678", Name: "Again", Email: "x@y.z", Password: "p", Role: model.RoleTeacher})
	assert.True(t, errors.Is(err, errors.AlreadyExists))

	for name, bad := range map[string]model.User{
		"no id":       {Name: "N", Email: "n@x.edu", Password: "p", Role: model.RoleStudent},
		"bad email":   {ID: "X", Name: "N", Email: "nope", Password: "p", Role: model.RoleStudent},
		"bad role":    {ID: "X", Name: "N", Email: "n@x.edu", Password: "p", Role: "dean"},
		"no password": {ID: "X", Name: "N", Email: "n@x.edu", Role: model.RoleStudent},
	} {
		_, err := s.Create(ctx, admin, bad)
		assert.True(t, errors.Is(err, errors.NotValid), name)
	}

	entries, err := log.All(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.UserCreated, entries[0].Action)
	assert.Equal(t, "Created new teacher user: Prof. Sarah Ahmed (T-5678)", entries[0].Details)
	assert.Equal(t, admin.Name, entries[0].UserName)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	mustCreate(t, s, model.User{ID: "21K-1234", Name: "Ali Ibrahim", Email: "ali@student.edu", Password: "student123", Role: model.RoleStudent})

	u, err := s.Authenticate(ctx, "21K-1234", "student123")
	require.NoError(t, err)
	assert.Equal(t, "Ali Ibrahim", u.Name)

	_, err = s.Authenticate(ctx, "21K-1234", "Student123")
	assert.True(t, errors.Is(err, errors.Unauthorized))
	_, err = s.Authenticate(ctx, "21K-9999", "student123")
	assert.True(t, errors.Is(err, errors.Unauthorized))
	_, err = s.Authenticate(ctx, "21K-1234", "")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestAuthenticateUpgradesLegacyPassword(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	require.NoError(t, s.Users().Put(ctx, model.User{ID: "22K-3001", Name: "Hassan Ali", Role: model.RoleStudent, Password: "student123"}))

	_, err := s.Authenticate(ctx, "22K-3001", "student123")
	require.NoError(t, err)
	stored, err := s.Get(ctx, "22K-3001")
	require.NoError(t, err)
	assert.True(t, auth.IsHashed(stored.Password))

	_, err = s.Authenticate(ctx, "22K-3001", "student123")
	require.NoError(t, err)
}

func TestUpdateAndDeleteUser(t *testing.T) {
	ctx := context.Background()
	s, log := newService(t)
	created := mustCreate(t, s, model.User{ID: "22K-3002", Name: "Ayesha Khan", Email: "ayesha@student.edu", Password: "student123", Role: model.RoleStudent})

	u, err := s.Update(ctx, admin, "22K-3002", UserUpdate{Name: "Ayesha K.", Email: "ayesha.k@student.edu", Department: "CS"})
	require.NoError(t, err)
	assert.Equal(t, "Ayesha K.", u.Name)
	assert.Equal(t, created.Password, u.Password, "empty password keeps the credential")

	u, err = s.Update(ctx, admin, "22K-3002", UserUpdate{Name: "Ayesha K.", Email: "ayesha.k@student.edu", Password: "new-pass"})
	require.NoError(t, err)
	assert.NotEqual(t, created.Password, u.Password)
	_, err = s.Authenticate(ctx, "22K-3002", "new-pass")
	require.NoError(t, err)

	_, err = s.Update(ctx, admin, "nobody", UserUpdate{Name: "N", Email: "n@x.edu"})
	assert.True(t, errors.Is(err, errors.NotFound))
	_, err = s.Update(ctx, admin, "22K-3002", UserUpdate{Email: "n@x.edu"})
	assert.True(t, errors.Is(err, errors.NotValid))

	require.NoError(t, s.Delete(ctx, admin, "22K-3002"))
	_, err = s.Get(ctx, "22K-3002")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.True(t, errors.Is(s.Delete(ctx, admin, "22K-3002"), errors.NotFound))

	students, err := s.ByRole(ctx, model.RoleStudent)
	require.NoError(t, err)
	assert.Empty(t, students)

	found, err := log.Search(ctx, "deleted user")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Deleted user: Ayesha K. (22K-3002)", found[0].Details)
}

func TestCourses(t *testing.T) {
	ctx := context.Background()
	s, log := newService(t)
	mustCreate(t, s, model.User{ID: "T-5680", Name: "Ms. Fatima Zaidi", Email: "fatima@university.edu", Password: "t", Role: model.RoleTeacher, Department: "Mathematics"})
	mustCreate(t, s, model.User{ID: "23K-5001", Name: "Bilal Ahmed", Email: "bilal@student.edu", Password: "s", Role: model.RoleStudent})
	mustCreate(t, s, model.User{ID: "23K-5002", Name: "Zara Malik", Email: "zara@student.edu", Password: "s", Role: model.RoleStudent})

	c, err := s.CreateCourse(ctx, admin, model.Course{
		Code: "MATH-101", Name: "Calculus I", CreditHours: 3, TeacherID: "T-5680",
		Students: []string{"23K-5002", "23K-5001", "23K-5002"},
	})
	require.NoError(t, err)
	assert.Equal(t, "MATH-101", c.ID)
	assert.Equal(t, "Ms. Fatima Zaidi", c.TeacherName)
	assert.Equal(t, "Mathematics", c.Department)
	assert.Equal(t, 1, c.Semester)
	assert.Equal(t, []string{"23K-5001", "23K-5002"}, c.Students)

	_, err = s.CreateCourse(ctx, admin, model.Course{Code: "MATH-101", Name: "Dup", CreditHours: 3, TeacherID: "T-5680"})
	assert.True(t, errors.Is(err, errors.AlreadyExists))
	_, err = s.CreateCourse(ctx, admin, model.Course{Code: "MATH-102", Name: "No teacher", CreditHours: 3, TeacherID: "23K-5001"})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = s.CreateCourse(ctx, admin, model.Course{Code: "MATH-103", Name: "No credits", TeacherID: "T-5680"})
	assert.True(t, errors.Is(err, errors.NotValid))

	taught, err := s.ByTeacher(ctx, "T-5680")
	require.NoError(t, err)
	require.Len(t, taught, 1)

	mine, err := s.ByStudent(ctx, "23K-5001")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	c, err = s.Unenroll(ctx, admin, "MATH-101", "23K-5001")
	require.NoError(t, err)
	assert.Equal(t, []string{"23K-5002"}, c.Students)
	c, err = s.Enroll(ctx, admin, "MATH-101", "23K-5001")
	require.NoError(t, err)
	c, err = s.Enroll(ctx, admin, "MATH-101", "23K-5001")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"23K-5001", "23K-5002"}, c.Students)

	_, err = s.Enroll(ctx, admin, "MATH-101", "T-5680")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = s.Enroll(ctx, admin, "MATH-999", "23K-5001")
	assert.True(t, errors.Is(err, errors.NotFound))

	require.NoError(t, s.DeleteCourse(ctx, admin, "MATH-101"))
	all, err := s.Courses(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	taught, err = s.ByTeacher(ctx, "T-5680")
	require.NoError(t, err)
	assert.Empty(t, taught)

	for query, want := range map[string]int{
		"Created new course: Calculus I (MATH-101)": 1,
		"Enrolled Bilal Ahmed (23K-5001) in MATH-101": 2,
		"Unenrolled Bilal Ahmed (23K-5001) from MATH-101": 1,
		"Deleted course: Calculus I (MATH-101)": 1,
	} {
		found, err := log.Search(ctx, query)
		require.NoError(t, err)
		assert.Len(t, found, want, query)
	}
}

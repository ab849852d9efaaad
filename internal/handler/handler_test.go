package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amalnama/internal/app"
	"amalnama/internal/config"
	"amalnama/internal/ident"
	"amalnama/internal/model"
	"amalnama/internal/queue"
	"amalnama/internal/store"
)

type server struct {
	app    *app.App
	router *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.App{
		JWTIssuer:     "amal-nama",
		JWTSigningKey: "test-key",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
		EmailProvider: "console",
		EmailAttempts: 1,
	}
	clk := testclock.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	a := app.Wire(cfg, store.NewMemory(), queue.NewInMemory(64), clk, &ident.Sequence{})
	_, err := a.Seeder.Seed(context.Background(), false)
	require.NoError(t, err)

	r := gin.New()
	New(a).Register(r)
	return &server{app: a, router: r}
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) login(t *testing.T, id, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/login", "", gin.H{"id": id, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.NotValidf("x"), http.StatusBadRequest},
		{errors.BadRequestf("x"), http.StatusBadRequest},
		{errors.Unauthorizedf("x"), http.StatusUnauthorized},
		{errors.Forbiddenf("x"), http.StatusForbidden},
		{errors.NotFoundf("x"), http.StatusNotFound},
		{errors.AlreadyExistsf("x"), http.StatusConflict},
		{errors.Annotate(errors.NotFoundf("x"), "wrapped"), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func TestLogin(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/api/login", "", gin.H{"id": "21K-1234", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid ID or password"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/login", "", gin.H{"id": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := s.login(t, "21K-1234", "student123")
	w = s.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[struct {
		User model.User `json:"user"`
	}](t, w)
	assert.Equal(t, "Ali Ibrahim", me.User.Name)
	assert.Empty(t, me.User.Password)
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/me", "garbage", nil).Code)
}

func TestDeletedUserTokenRejected(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "23K-5002", "student123")
	admin := s.login(t, "A-0001", "admin123")

	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/users/23K-5002", admin, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/me", token, nil).Code)
}

func TestRefresh(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/login", "", gin.H{"id": "T-5678", "password": "teacher123"})
	require.Equal(t, http.StatusOK, w.Code)
	pair := decode[struct {
		Access  string `json:"access_token"`
		Refresh string `json:"refresh_token"`
	}](t, w)

	assert.Equal(t, http.StatusUnauthorized,
		s.do(t, http.MethodPost, "/api/refresh", "", gin.H{"refresh_token": pair.Access}).Code)
	w = s.do(t, http.MethodPost, "/api/refresh", "", gin.H{"refresh_token": pair.Refresh})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStudentsReadOnlyTheirOwnRecords(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "21K-1234", "student123")

	for _, path := range []string{
		"/api/students/21K-1235/attendance",
		"/api/students/21K-1235/grades",
		"/api/students/21K-1235/transcript",
	} {
		assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, path, token, nil).Code, path)
	}

	w := s.do(t, http.MethodGet, "/api/students/21K-1234/attendance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[struct {
		StudentID string             `json:"studentId"`
		Courses   []courseAttendance `json:"courses"`
	}](t, w)
	assert.Equal(t, "21K-1234", out.StudentID)
	assert.Len(t, out.Courses, 3)

	w = s.do(t, http.MethodGet, "/api/students/21K-1234/transcript", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/at-risk", token, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/audit", token, nil).Code)
}

func TestTeacherCanReadAnyStudent(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "T-5679", "teacher123")
	w := s.do(t, http.MethodGet, "/api/students/21K-1235/grades?course=CS-301", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[struct {
		Grades []model.GradeEvent `json:"grades"`
	}](t, w)
	assert.NotEmpty(t, out.Grades)
	for _, g := range out.Grades {
		assert.Equal(t, "CS-301", g.CourseID)
	}

	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodGet, "/api/students/99X-0000/attendance", token, nil).Code)
}

func TestMarkAttendance(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "T-5679", "teacher123")

	w := s.do(t, http.MethodPost, "/api/attendance", token, gin.H{
		"studentId": "21K-1234", "courseId": "CS-301", "date": "2024-03-04", "status": "late",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	evt := decode[model.AttendanceEvent](t, w)
	assert.Equal(t, model.StatusLate, evt.Status)
	assert.Equal(t, "T-5679", evt.MarkedBy)

	w = s.do(t, http.MethodPost, "/api/attendance", token, gin.H{
		"studentId": "21K-1234", "courseId": "CS-301", "date": "2024-03-04", "status": "sleeping",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/attendance", token, gin.H{
		"studentId": "23K-5001", "courseId": "CS-101", "status": "present",
	})
	assert.Equal(t, http.StatusForbidden, w.Code, "CS-101 is taught by T-5678")

	w = s.do(t, http.MethodGet, "/api/courses/CS-301/attendance?date=2024-03-04", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	day := decode[struct {
		Events []model.AttendanceEvent `json:"events"`
	}](t, w)
	require.Len(t, day.Events, 1)
	assert.Equal(t, "21K-1234", day.Events[0].StudentID)
}

func TestRecordSessionAudits(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "T-5679", "teacher123")

	w := s.do(t, http.MethodPost, "/api/courses/CS-301/attendance", token, gin.H{
		"date": "2024-03-04",
		"entries": []gin.H{
			{"studentId": "21K-1234", "status": "present"},
			{"studentId": "21K-1235", "status": "absent"},
			{"studentId": "21K-1236", "status": "present"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 3, decode[struct {
		Marked int `json:"marked"`
	}](t, w).Marked)

	entries, err := s.app.Audit.Search(context.Background(), "Marked attendance for CS-301 on 2024-03-04 - 3 students")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	w = s.do(t, http.MethodPost, "/api/courses/CS-301/attendance", token, gin.H{"entries": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostAndModifyGrades(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "T-5680", "teacher123")

	w := s.do(t, http.MethodPost, "/api/courses/MATH-201/grades", token, gin.H{
		"assessmentType": "Quiz 4",
		"maxMarks":       10,
		"entries":        []gin.H{{"studentId": "21K-1234", "obtainedMarks": 9}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[struct {
		Saved int `json:"saved"`
	}](t, w).Saved)

	grades, err := s.app.Grading.ByStudentAndCourse(context.Background(), "21K-1234", "MATH-201")
	require.NoError(t, err)
	var id string
	for _, g := range grades {
		if g.AssessmentType == "Quiz 4" {
			id = g.ID
		}
	}
	require.NotEmpty(t, id)

	w = s.do(t, http.MethodPatch, "/api/grades/"+id, token, gin.H{"obtainedMarks": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InDelta(t, 50, decode[model.GradeEvent](t, w).Percentage, 0.001)

	other := s.login(t, "T-5678", "teacher123")
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, "/api/grades/"+id, other, gin.H{"obtainedMarks": 1}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, "/api/grades/nope", token, gin.H{}).Code)
}

func TestCourseStatsAndAtRisk(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "T-5679", "teacher123")

	w := s.do(t, http.MethodGet, "/api/courses/CS-301/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"grades":{"average"`)

	w = s.do(t, http.MethodGet, "/api/at-risk", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[struct {
		Students []struct {
			CourseID   string `json:"courseId"`
			Attendance int    `json:"attendance"`
		} `json:"students"`
	}](t, w)
	for _, st := range out.Students {
		assert.Less(t, st.Attendance, 85)
		assert.Contains(t, []string{"CS-301", "CS-401"}, st.CourseID)
	}
}

func TestNotifications(t *testing.T) {
	s := newServer(t)
	student := s.login(t, "21K-1234", "student123")

	w := s.do(t, http.MethodGet, "/api/notifications/unread", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	before := decode[struct {
		Unread int `json:"unread"`
	}](t, w).Unread
	require.Positive(t, before)

	w = s.do(t, http.MethodGet, "/api/notifications", student, nil)
	notes := decode[struct {
		Notifications []model.Notification `json:"notifications"`
	}](t, w).Notifications
	require.NotEmpty(t, notes)

	teacher := s.login(t, "T-5679", "teacher123")
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodPost, "/api/notifications/"+notes[0].ID+"/read", teacher, nil).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/notifications/read-all", student, nil).Code)
	w = s.do(t, http.MethodGet, "/api/notifications/unread", student, nil)
	assert.JSONEq(t, `{"unread":0}`, w.Body.String())

	assert.Equal(t, http.StatusNoContent,
		s.do(t, http.MethodDelete, "/api/notifications/"+notes[0].ID, student, nil).Code)
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodDelete, "/api/notifications/"+notes[0].ID, student, nil).Code)
}

func TestAdminUsersAndCourses(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "A-0001", "admin123")

	newUser := gin.H{"id": "24K-0001", "name": "Sana Riaz", "email": "sana.riaz@student.edu",
		"password": "student123", "role": "student"}
	w := s.do(t, http.MethodPost, "/api/users", admin, newUser)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Empty(t, decode[model.User](t, w).Password)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/users", admin, newUser).Code)

	w = s.do(t, http.MethodPost, "/api/courses", admin, gin.H{
		"code": "CS-501", "name": "Compilers", "creditHours": 3, "teacherId": "T-5678",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Prof. Sarah Ahmed", decode[model.Course](t, w).TeacherName)

	w = s.do(t, http.MethodPost, "/api/courses/CS-501/students", admin, gin.H{"studentId": "24K-0001"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"24K-0001"}, decode[model.Course](t, w).Students)

	w = s.do(t, http.MethodDelete, "/api/courses/CS-501/students/24K-0001", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[model.Course](t, w).Students)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/courses/CS-501", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/courses/CS-501", admin, nil).Code)

	w = s.do(t, http.MethodGet, "/api/audit?q=Compilers", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Entries []model.AuditEntry `json:"entries"`
	}](t, w).Entries, 2)

	w = s.do(t, http.MethodGet, "/api/audit?flagged=true", admin, nil)
	flagged := decode[struct {
		Entries []model.AuditEntry `json:"entries"`
	}](t, w).Entries
	require.Len(t, flagged, 1)
	assert.True(t, flagged[0].Flagged)
}

func TestWarningsAndViolations(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "A-0001", "admin123")

	w := s.do(t, http.MethodGet, "/api/policy-violations", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/warnings", admin, gin.H{"studentId": "21K-1234", "courseId": "CS-301"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	n := decode[model.Notification](t, w)
	assert.Equal(t, "Official Attendance Warning", n.Title)
	assert.Equal(t, model.SeverityDanger, n.Type)

	w = s.do(t, http.MethodPost, "/api/warnings", admin, gin.H{"studentId": "21K-1234", "courseId": "NOPE"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBackupRoundTrip(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, "A-0001", "admin123")

	w := s.do(t, http.MethodGet, "/api/admin/backup", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	data := doc["data"].(map[string]any)
	assert.Contains(t, data, store.UsersKey)
	assert.Contains(t, data, store.AttendanceKey)

	w = s.do(t, http.MethodPost, "/api/admin/restore", admin, doc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSendEmail(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/api/send-email", "", gin.H{"to": "a@b.c", "subject": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing required fields"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/send-email", "", gin.H{
		"to": "ali.ibrahim@student.edu", "subject": "Critical Attendance Alert - AMAL-NAMA",
		"type": "critical-attendance",
		"data": gin.H{"studentName": "Ali Ibrahim", "courseName": "Database Systems", "attendance": 78},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Email sent successfully"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/send-email", "", gin.H{"to": "a@b.c", "subject": "x", "type": "newsletter"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Failed to send email"}`, w.Body.String())
}

func TestDebug(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/api/debug", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"provider":"console","apiKeyExists":false,"apiKeyLength":0,"apiKeyPreview":"NOT SET"}`, w.Body.String())

	assert.Equal(t, "re_ab...vwxyz", maskKey("re_abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, "...", maskKey("short"))
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"

	"amalnama/internal/attendance"
	"amalnama/internal/grading"
	"amalnama/internal/model"
)

// taught loads course id and rejects teachers who do not teach it.
func (h *Handler) taught(c *gin.Context, id string) (model.Course, bool) {
	course, err := h.app.Directory.Course(c.Request.Context(), id)
	if err == nil {
		if s := current(c); s.Role() == model.RoleTeacher && course.TeacherID != s.User.ID {
			err = errors.Forbiddenf("course %s is taught by another teacher", id)
		}
	}
	if err != nil {
		fail(c, err)
		return model.Course{}, false
	}
	return course, true
}

func (h *Handler) today() string {
	return h.app.Clock.Now().Format(model.DateLayout)
}

func (h *Handler) mark(c *gin.Context) {
	var req struct {
		StudentID string                 `json:"studentId" binding:"required"`
		CourseID  string                 `json:"courseId" binding:"required"`
		Date      string                 `json:"date"`
		Status    model.AttendanceStatus `json:"status" binding:"required"`
		Notes     string                 `json:"notes"`
	}
	if !bind(c, &req) {
		return
	}
	if _, ok := h.taught(c, req.CourseID); !ok {
		return
	}
	if req.Date == "" {
		req.Date = h.today()
	}
	evt, err := h.app.Attendance.Mark(c.Request.Context(), req.StudentID, req.CourseID, req.Date,
		req.Status, current(c).User.ID, req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, evt)
}

func (h *Handler) recordSession(c *gin.Context) {
	course, ok := h.taught(c, c.Param("id"))
	if !ok {
		return
	}
	var req struct {
		Date    string                 `json:"date"`
		Entries []attendance.BulkEntry `json:"entries" binding:"dive"`
	}
	if !bind(c, &req) {
		return
	}
	if req.Date == "" {
		req.Date = h.today()
	}
	evts, err := h.app.Attendance.RecordSession(c.Request.Context(), current(c).User, course.ID, req.Date, req.Entries)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": len(evts), "events": evts})
}

// courseAttendance lists a course's events, for one date when ?date= is set.
func (h *Handler) courseAttendance(c *gin.Context) {
	course, ok := h.taught(c, c.Param("id"))
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var (
		evts []model.AttendanceEvent
		err  error
	)
	if date := c.Query("date"); date != "" {
		evts, err = h.app.Attendance.ForCourseAndDate(ctx, course.ID, date)
	} else {
		evts, err = h.app.Attendance.ByCourse(ctx, course.ID)
	}
	if err != nil {
		fail(c, err)
		return
	}
	if evts == nil {
		evts = []model.AttendanceEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"courseId": course.ID, "events": evts})
}

func (h *Handler) courseStats(c *gin.Context) {
	course, ok := h.taught(c, c.Param("id"))
	if !ok {
		return
	}
	ctx := c.Request.Context()
	att, err := h.app.Attendance.Stats(ctx, "", course.ID)
	if err != nil {
		fail(c, err)
		return
	}
	grades, err := h.app.Grading.CourseStats(ctx, course.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courseId": course.ID, "attendance": att, "grades": grades})
}

func (h *Handler) postGrades(c *gin.Context) {
	course, ok := h.taught(c, c.Param("id"))
	if !ok {
		return
	}
	var req struct {
		AssessmentType string               `json:"assessmentType" binding:"required"`
		MaxMarks       float64              `json:"maxMarks" binding:"required"`
		Entries        []grading.SheetEntry `json:"entries" binding:"dive"`
	}
	if !bind(c, &req) {
		return
	}
	n, err := h.app.Grading.Post(c.Request.Context(), current(c).User, course.ID, req.AssessmentType, req.MaxMarks, req.Entries)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": n})
}

func (h *Handler) modifyGrade(c *gin.Context) {
	g, err := h.app.Grading.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if _, ok := h.taught(c, g.CourseID); !ok {
		return
	}
	var upd grading.GradeUpdate
	if !bind(c, &upd) {
		return
	}
	g, err = h.app.Grading.Modify(c.Request.Context(), current(c).User, g.ID, upd)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// atRisk lists the caller's at-risk students. Admins may pass ?teacher=.
func (h *Handler) atRisk(c *gin.Context) {
	s := current(c)
	teacherID := s.User.ID
	if t := c.Query("teacher"); t != "" && s.Role() == model.RoleAdmin {
		teacherID = t
	}
	out, err := h.app.Attendance.AtRisk(c.Request.Context(), teacherID)
	if err != nil {
		fail(c, err)
		return
	}
	if out == nil {
		out = []attendance.Standing{}
	}
	c.JSON(http.StatusOK, gin.H{"students": out})
}

type studentCourse struct {
	StudentID string `json:"studentId" binding:"required"`
	CourseID  string `json:"courseId" binding:"required"`
}

func (h *Handler) reminder(c *gin.Context) {
	var req studentCourse
	if !bind(c, &req) {
		return
	}
	if _, ok := h.taught(c, req.CourseID); !ok {
		return
	}
	n, err := h.app.Attendance.SendReminder(c.Request.Context(), current(c).User, req.StudentID, req.CourseID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

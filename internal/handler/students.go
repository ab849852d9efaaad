package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"amalnama/internal/attendance"
	"amalnama/internal/model"
)

type courseAttendance struct {
	CourseID   string           `json:"courseId"`
	CourseName string           `json:"courseName"`
	Percentage int              `json:"percentage"`
	Stats      attendance.Stats `json:"stats"`
}

// studentAttendance reports overall and per-course attendance. ?course=
// narrows the breakdown to one course.
func (h *Handler) studentAttendance(c *gin.Context) {
	id := c.Param("id")
	if !self(c, id) {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.app.Directory.Get(ctx, id); err != nil {
		fail(c, err)
		return
	}
	overall, err := h.app.Attendance.Stats(ctx, id, "")
	if err != nil {
		fail(c, err)
		return
	}

	var courses []model.Course
	if courseID := c.Query("course"); courseID != "" {
		course, err := h.app.Directory.Course(ctx, courseID)
		if err != nil {
			fail(c, err)
			return
		}
		courses = []model.Course{course}
	} else if courses, err = h.app.Directory.ByStudent(ctx, id); err != nil {
		fail(c, err)
		return
	}

	breakdown := make([]courseAttendance, 0, len(courses))
	for _, course := range courses {
		st, err := h.app.Attendance.Stats(ctx, id, course.ID)
		if err != nil {
			fail(c, err)
			return
		}
		breakdown = append(breakdown, courseAttendance{
			CourseID:   course.ID,
			CourseName: course.Name,
			Percentage: st.Percentage,
			Stats:      st,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"studentId":  id,
		"percentage": overall.Percentage,
		"stats":      overall,
		"courses":    breakdown,
	})
}

func (h *Handler) studentGrades(c *gin.Context) {
	id := c.Param("id")
	if !self(c, id) {
		return
	}
	ctx := c.Request.Context()
	var (
		grades []model.GradeEvent
		err    error
	)
	if courseID := c.Query("course"); courseID != "" {
		grades, err = h.app.Grading.ByStudentAndCourse(ctx, id, courseID)
	} else {
		grades, err = h.app.Grading.ByStudent(ctx, id)
	}
	if err != nil {
		fail(c, err)
		return
	}
	if grades == nil {
		grades = []model.GradeEvent{}
	}
	cgpa, err := h.app.Grading.CGPA(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"studentId": id, "grades": grades, "cgpa": cgpa})
}

func (h *Handler) transcript(c *gin.Context) {
	id := c.Param("id")
	if !self(c, id) {
		return
	}
	t, err := h.app.Grading.Transcript(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"amalnama/internal/attendance"
	"amalnama/internal/backup"
	"amalnama/internal/directory"
	"amalnama/internal/model"
)

// ---------- Users ----------

func (h *Handler) users(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		users []model.User
		err   error
	)
	if role := c.Query("role"); role != "" {
		users, err = h.app.Directory.ByRole(ctx, model.Role(role))
	} else {
		users, err = h.app.Directory.All(ctx)
	}
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

func (h *Handler) user(c *gin.Context) {
	u, err := h.app.Directory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

func (h *Handler) createUser(c *gin.Context) {
	var u model.User
	if !bind(c, &u) {
		return
	}
	created, err := h.app.Directory.Create(c.Request.Context(), current(c).User, u)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created.Public())
}

func (h *Handler) updateUser(c *gin.Context) {
	var upd directory.UserUpdate
	if !bind(c, &upd) {
		return
	}
	u, err := h.app.Directory.Update(c.Request.Context(), current(c).User, c.Param("id"), upd)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.app.Directory.Delete(c.Request.Context(), current(c).User, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Courses ----------

func (h *Handler) courses(c *gin.Context) {
	courses, err := h.app.Directory.Courses(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *Handler) createCourse(c *gin.Context) {
	var course model.Course
	if !bind(c, &course) {
		return
	}
	created, err := h.app.Directory.CreateCourse(c.Request.Context(), current(c).User, course)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) deleteCourse(c *gin.Context) {
	if err := h.app.Directory.DeleteCourse(c.Request.Context(), current(c).User, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) enroll(c *gin.Context) {
	var req struct {
		StudentID string `json:"studentId" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	course, err := h.app.Directory.Enroll(c.Request.Context(), current(c).User, c.Param("id"), req.StudentID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *Handler) unenroll(c *gin.Context) {
	course, err := h.app.Directory.Unenroll(c.Request.Context(), current(c).User, c.Param("id"), c.Param("student"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// ---------- Audit and policy ----------

// auditLog lists the log newest first. ?flagged=true keeps flagged entries,
// ?q= filters by text.
func (h *Handler) auditLog(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		entries []model.AuditEntry
		err     error
	)
	switch {
	case c.Query("flagged") == "true":
		entries, err = h.app.Audit.Flagged(ctx)
	case c.Query("q") != "":
		entries, err = h.app.Audit.Search(ctx, c.Query("q"))
	default:
		entries, err = h.app.Audit.All(ctx)
	}
	if err != nil {
		fail(c, err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) violations(c *gin.Context) {
	out, err := h.app.Attendance.PolicyViolations(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if out == nil {
		out = []attendance.Standing{}
	}
	c.JSON(http.StatusOK, gin.H{"violations": out})
}

func (h *Handler) warning(c *gin.Context) {
	var req studentCourse
	if !bind(c, &req) {
		return
	}
	n, err := h.app.Attendance.SendWarning(c.Request.Context(), current(c).User, req.StudentID, req.CourseID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// ---------- Backup ----------

func (h *Handler) exportBackup(c *gin.Context) {
	doc, err := h.app.Backup.Export(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=amal-nama-backup.json")
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) importBackup(c *gin.Context) {
	var doc backup.Document
	if !bind(c, &doc) {
		return
	}
	res, err := h.app.Backup.Import(c.Request.Context(), doc)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

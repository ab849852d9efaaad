// Package handler exposes the engine over HTTP with gin.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"amalnama/internal/app"
	"amalnama/internal/auth"
	"amalnama/internal/model"
	"amalnama/internal/session"
)

var logger = loggo.GetLogger("amalnama.handler")

// sessionKey is the gin context key holding the resumed *session.Session.
const sessionKey = "session"

// Handler serves the JSON API over the wired services.
type Handler struct {
	app *app.App
}

// New creates a handler for a.
func New(a *app.App) *Handler {
	return &Handler{app: a}
}

// Register mounts every /api route on r.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/login", h.login)
	api.POST("/refresh", h.refresh)
	api.POST("/send-email", h.sendEmail)
	api.GET("/debug", h.debug)

	authed := api.Group("", auth.Bearer(h.app.Signer), h.resume)
	authed.POST("/logout", h.logout)
	authed.GET("/me", h.me)
	authed.GET("/notifications", h.notifications)
	authed.GET("/notifications/unread", h.unread)
	authed.POST("/notifications/read-all", h.readAll)
	authed.POST("/notifications/:id/read", h.markRead)
	authed.DELETE("/notifications/:id", h.deleteNotification)
	authed.GET("/students/:id/attendance", h.studentAttendance)
	authed.GET("/students/:id/grades", h.studentGrades)
	authed.GET("/students/:id/transcript", h.transcript)

	staff := authed.Group("", auth.RequireRole(string(model.RoleTeacher), string(model.RoleAdmin)))
	staff.POST("/attendance", h.mark)
	staff.POST("/courses/:id/attendance", h.recordSession)
	staff.GET("/courses/:id/attendance", h.courseAttendance)
	staff.GET("/courses/:id/stats", h.courseStats)
	staff.POST("/courses/:id/grades", h.postGrades)
	staff.PATCH("/grades/:id", h.modifyGrade)
	staff.GET("/at-risk", h.atRisk)
	staff.POST("/reminders", h.reminder)

	admin := authed.Group("", auth.RequireRole(string(model.RoleAdmin)))
	admin.GET("/users", h.users)
	admin.POST("/users", h.createUser)
	admin.GET("/users/:id", h.user)
	admin.PUT("/users/:id", h.updateUser)
	admin.DELETE("/users/:id", h.deleteUser)
	admin.GET("/courses", h.courses)
	admin.POST("/courses", h.createCourse)
	admin.DELETE("/courses/:id", h.deleteCourse)
	admin.POST("/courses/:id/students", h.enroll)
	admin.DELETE("/courses/:id/students/:student", h.unenroll)
	admin.GET("/audit", h.auditLog)
	admin.GET("/policy-violations", h.violations)
	admin.POST("/warnings", h.warning)
	admin.GET("/admin/backup", h.exportBackup)
	admin.POST("/admin/restore", h.importBackup)
}

// resume turns verified claims into a session, rejecting tokens whose user
// was deleted or changed role.
func (h *Handler) resume(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	s, err := h.app.Sessions.Resume(c.Request.Context(), claims)
	if err != nil {
		fail(c, err)
		c.Abort()
		return
	}
	c.Set(sessionKey, s)
	c.Next()
}

func current(c *gin.Context) *session.Session {
	v, _ := c.Get(sessionKey)
	s, _ := v.(*session.Session)
	return s
}

// self rejects students reading another student's records.
func self(c *gin.Context, id string) bool {
	s := current(c)
	if s.Role() == model.RoleStudent && s.User.ID != id {
		fail(c, errors.Forbiddenf("students may only view their own records"))
		return false
	}
	return true
}

// statusOf maps an error category to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.BadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errors.Unauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errors.Forbidden):
		return http.StatusForbidden
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.AlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), errors.ErrorStack(err))
		msg = "Internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// bind decodes the JSON body, answering 400 on failure.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

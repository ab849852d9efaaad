package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"amalnama/internal/auth"
	"amalnama/internal/session"
)

func tokenResponse(s *session.Session, pair auth.TokenPair) gin.H {
	return gin.H{
		"user":          s.User,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.AccessExp.Unix(),
	}
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	if !bind(c, &req) {
		return
	}
	s, pair, err := h.app.Sessions.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(s, pair))
}

func (h *Handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	s, pair, err := h.app.Sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(s, pair))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.app.Sessions.Logout(c.Request.Context(), current(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, current(c))
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"amalnama/internal/mail"
)

// sendEmail is the relay endpoint used by browser clients and remote
// workers.
func (h *Handler) sendEmail(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("email relay panic: %v", r)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
	}()

	var req mail.Request
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" || req.Subject == "" || req.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	if !h.app.Relay.Send(c.Request.Context(), req) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to send email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email sent successfully"})
}

// debug reports whether the active provider has a key, without revealing it.
func (h *Handler) debug(c *gin.Context) {
	provider := h.app.Relay.Provider().Name()
	key := h.app.Config.ResendAPIKey
	if provider == "sendgrid" {
		key = h.app.Config.SendGridAPIKey
	}
	c.JSON(http.StatusOK, gin.H{
		"provider":      provider,
		"apiKeyExists":  key != "",
		"apiKeyLength":  len(key),
		"apiKeyPreview": maskKey(key),
	})
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "NOT SET"
	case len(key) <= 10:
		return "..."
	}
	return key[:5] + "..." + key[len(key)-5:]
}

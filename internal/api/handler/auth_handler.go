package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raboid/rpa-dispatch/internal/api/dto"
)

// Authenticate handles POST /api/v1/auth
// Exchanges worker credentials for a short-lived bearer token.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req dto.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	token, err := h.auth.Authenticate(c.Request.Context(), req.WorkerID, req.Secret)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthResponse{
		Token:     token.AccessToken,
		ExpiresIn: token.ExpiresIn,
	})
}

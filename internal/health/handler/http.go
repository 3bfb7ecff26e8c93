// Package handler exposes the liveness endpoint.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"umbra-auth/internal/server/response"
)

type Handler struct {
	service string
}

// NewHandler returns a health handler reporting the given service name.
func NewHandler(service string) *Handler {
	return &Handler{service: service}
}

// Check handles GET /health.
func (h *Handler) Check(c *gin.Context) {
	response.OK(c, http.StatusOK, "ok", gin.H{
		"status":  "healthy",
		"service": h.service,
	})
}

// Package handler exposes the auth service over HTTP. It owns the translation
// from service sentinel errors to statuses and envelope fields; the service
// itself knows nothing about HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"umbra-auth/internal/auth/service"
	"umbra-auth/internal/server/middleware"
	"umbra-auth/internal/server/response"
)

type Handler struct {
	svc *service.AuthService
}

// NewHandler returns an auth HTTP handler backed by the given service.
func NewHandler(svc *service.AuthService) *Handler {
	return &Handler{svc: svc}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	result, err := h.svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, http.StatusCreated, "account created", tokenData(result))
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, http.StatusOK, "login successful", tokenData(result))
}

// Refresh handles POST /auth/refresh. A missing refresh_token is a 400; a
// present but unusable one is a 401.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		response.Fail(c, http.StatusBadRequest, "refresh token is required",
			map[string]string{"refresh_token": "refresh_token is required"})
		return
	}
	result, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, http.StatusOK, "token refreshed", tokenData(result))
}

// Logout handles POST /auth/logout. Succeeds whether or not the token was
// known or still active; only an absent token is an error.
func (h *Handler) Logout(c *gin.Context) {
	var req refreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		response.Fail(c, http.StatusBadRequest, "refresh token is required",
			map[string]string{"refresh_token": "refresh_token is required"})
		return
	}
	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, http.StatusOK, "logged out", gin.H{"revoked": true})
}

// Me handles GET /auth/me. RequireAuth must run first.
func (h *Handler) Me(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "authentication required",
			map[string]string{"access_token": "missing or invalid access token"})
		return
	}
	account, err := h.svc.Me(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, http.StatusOK, "ok", gin.H{
		"user": gin.H{"id": account.ID, "email": account.Email},
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verrs service.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		response.Fail(c, http.StatusBadRequest, "validation failed", verrs)
	case errors.Is(err, service.ErrEmailTaken):
		response.Fail(c, http.StatusConflict, "email already registered",
			map[string]string{"email": "email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, "invalid credentials",
			map[string]string{"credentials": "invalid email or password"})
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Fail(c, http.StatusUnauthorized, "invalid refresh token",
			map[string]string{"refresh_token": "invalid or expired refresh token"})
	case errors.Is(err, service.ErrAccountNotFound):
		response.Fail(c, http.StatusNotFound, "account not found", nil)
	default:
		// Store timeouts and anything unexpected. Never a 401: an outage must
		// not read as a revoked credential.
		response.Fail(c, http.StatusInternalServerError, "internal server error", nil)
	}
}

func tokenData(r *service.AuthResult) gin.H {
	return gin.H{
		"user":          gin.H{"id": r.AccountID, "email": r.Email},
		"access_token":  r.AccessToken,
		"refresh_token": r.RefreshToken,
	}
}

// Package server wires the gin engine: middleware, routes, and the HTTP
// server lifecycle.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	authhandler "umbra-auth/internal/auth/handler"
	healthhandler "umbra-auth/internal/health/handler"
	"umbra-auth/internal/security"
	"umbra-auth/internal/server/middleware"
	"umbra-auth/internal/server/response"
)

// ServiceName labels traces and the health payload.
const ServiceName = "umbra-auth"

// NewRouter builds the gin engine with all routes registered.
func NewRouter(auth *authhandler.Handler, health *healthhandler.Handler, tokens *security.TokenProvider) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(ServiceName))
	r.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, "not found", nil)
	})

	r.GET("/health", health.Check)

	g := r.Group("/auth")
	g.POST("/register", auth.Register)
	g.POST("/login", auth.Login)
	g.POST("/refresh", auth.Refresh)
	g.POST("/logout", auth.Logout)
	g.GET("/me", middleware.RequireAuth(tokens), auth.Me)

	return r
}

// New returns an http.Server for the router with sane timeouts.
func New(addr string, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}


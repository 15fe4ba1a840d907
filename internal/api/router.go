package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/peopledeskhq/peopledesk/internal/app"
	iauth "github.com/peopledeskhq/peopledesk/internal/auth"
	"github.com/peopledeskhq/peopledesk/internal/handlers"
	"github.com/peopledeskhq/peopledesk/internal/middleware"
	"github.com/peopledeskhq/peopledesk/internal/security"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, cfg *app.Config, tokens *iauth.TokenService, authSvc *iauth.Service, securitySvc *security.Service) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service must be provided")
	}
	if authSvc == nil {
		return nil, fmt.Errorf("auth service must be provided")
	}
	if securitySvc == nil {
		return nil, fmt.Errorf("security service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	// Public endpoints
	r.GET("/health", handlers.Health(db))
	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(cfg.Monitoring.Prometheus.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(authSvc)
	securityHandler := handlers.NewSecurityHandler(db, securitySvc)

	registerAuthRoutes(r, authHandler, securityHandler, tokens)

	return r, nil
}

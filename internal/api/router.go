// Package api wires together all HTTP routes for the Chravel backend.
//
// Route grouping:
//   - /health, /ready, /version are unauthenticated probes.
//   - /api/v1/ routes require a user JWT; every mutation names the
//     authenticated user as the actor and the engine resolves what that
//     actor may do.
//   - /api/v1/trips/:trip_id/roster/sync is the single machine route, gated
//     by the bcrypt-hashed sync token instead of a user JWT.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/chravel/chravel-backend/internal/api/channels"
	"github.com/chravel/chravel-backend/internal/api/roster"
	"github.com/chravel/chravel-backend/internal/api/trips"
	"github.com/chravel/chravel-backend/internal/authz"
	"github.com/chravel/chravel-backend/internal/config"
	"github.com/chravel/chravel-backend/internal/middleware"
)

// Version is the service version reported by /version. Overridden at build
// time with -ldflags.
var Version = "0.1.0"

// SetupRouter builds the Gin engine with all middleware and routes.
func SetupRouter(cfg *config.Config, db *sqlx.DB) *gin.Engine {
	engine := authz.New(db, authz.Options{
		SuperAdmins:             cfg.Engine.SuperAdmins,
		AutoProvisionMembership: cfg.Engine.AutoProvisionMembership,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", healthCheckHandler(db))
	router.GET("/version", versionHandler())

	tripHandlers := trips.NewTripHandlers(engine)
	roleHandlers := roster.NewRoleHandlers(engine)
	channelHandlers := channels.NewChannelHandlers(engine)

	// Machine route first: the roster token middleware replaces user auth.
	sync := router.Group("/api/v1")
	sync.Use(middleware.RosterToken(&cfg.Auth))
	sync.POST("/trips/:trip_id/roster/sync", roleHandlers.Sync)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(&cfg.Auth))
	{
		v1.POST("/trips", tripHandlers.Create)
		v1.GET("/trips/:trip_id", tripHandlers.Get)
		v1.DELETE("/trips/:trip_id", tripHandlers.Delete)

		v1.GET("/trips/:trip_id/members", tripHandlers.ListMembers)
		v1.POST("/trips/:trip_id/members", tripHandlers.AddMember)
		v1.DELETE("/trips/:trip_id/members/:user_id", tripHandlers.RemoveMember)

		v1.GET("/trips/:trip_id/roles", roleHandlers.ListRoles)
		v1.POST("/trips/:trip_id/roles", roleHandlers.CreateRole)
		v1.DELETE("/roles/:role_id", roleHandlers.DeleteRole)

		v1.POST("/trips/:trip_id/assignments", roleHandlers.AssignRole)
		v1.DELETE("/trips/:trip_id/assignments/:role_id", roleHandlers.LeaveRole)
		v1.GET("/trips/:trip_id/users/:user_id/primary-role", roleHandlers.GetPrimaryRole)
		v1.GET("/trips/:trip_id/users/:user_id/assignments", roleHandlers.ListAssignments)

		v1.GET("/trips/:trip_id/admins", roleHandlers.ListAdmins)
		v1.PUT("/trips/:trip_id/admins", roleHandlers.GrantAdmin)

		v1.GET("/trips/:trip_id/channels", channelHandlers.List)
		v1.POST("/trips/:trip_id/channels", channelHandlers.Create)
		v1.GET("/trips/:trip_id/channels/mine", channelHandlers.ListMine)

		v1.POST("/channels/:channel_id/roles", channelHandlers.GrantRole)
		v1.DELETE("/channels/:channel_id/roles/:role_id", channelHandlers.RevokeRole)
		v1.GET("/channels/:channel_id/members", channelHandlers.ListMembers)
		v1.POST("/channels/:channel_id/members", channelHandlers.AddMember)
		v1.DELETE("/channels/:channel_id/members/:user_id", channelHandlers.RemoveMember)
		v1.DELETE("/channels/:channel_id", channelHandlers.Delete)
		v1.GET("/channels/:channel_id/access", channelHandlers.Access)
	}

	return router
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging via slog. Output
// format (JSON or text) follows the global handler configured in
// telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID := c.GetString(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", requestID),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

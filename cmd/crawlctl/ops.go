package main

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gilby125/flightcrawler/config"
	"github.com/gilby125/flightcrawler/core"
	"github.com/gilby125/flightcrawler/orchestration"
	"github.com/gilby125/flightcrawler/pkg/cache"
	"github.com/gilby125/flightcrawler/pkg/worker_registry"
)

// newOpsEngine builds the operational HTTP surface `crawlctl serve`
// exposes alongside the queue consumer and scheduler: liveness, Prometheus
// metrics, and an auth-guarded debug view of per-source health. Ground:
// teacher api/handlers.go's gin.Engine + pkg/middleware/auth.go's
// bearer-token guard, generalized from basic-auth/static-token to
// golang-jwt/jwt/v5 bearer tokens and scoped down to ops endpoints now
// that the public search API (api/) is out of scope.
func newOpsEngine(authCfg config.AdminAuthConfig, disp dispatcherHealthChecker, healthCache *cache.HealthCache, registry *worker_registry.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debug := engine.Group("/debug")
	debug.Use(jwtBearerAuth(authCfg))
	debug.GET("/sources", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), opsHealthCheckTimeout)
		defer cancel()
		results := disp.HealthCheck(ctx)

		sources := make([]string, 0, len(results))
		for source, healthy := range results {
			healthCache.Set(source, healthy)
			sources = append(sources, string(source))
		}
		sort.Strings(sources)

		body := make(gin.H, len(results))
		for _, s := range sources {
			body[s] = results[core.DataSource(s)]
		}
		c.JSON(http.StatusOK, body)
	})
	debug.GET("/workers", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), opsHealthCheckTimeout)
		defer cancel()
		active, err := registry.ListActive(ctx, heartbeatInterval*4, 100)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, active)
	})

	return engine
}

// dispatcherHealthChecker is the slice of *dispatcher.Dispatcher the ops
// engine needs, kept as an interface so tests can stub it without
// constructing real source adapters.
type dispatcherHealthChecker interface {
	HealthCheck(ctx context.Context) map[core.DataSource]bool
}

// jwtBearerAuth rejects any request without a valid HS256 bearer token
// signed with authCfg.Token. Disabled (open) when authCfg.Enabled is
// false, matching the teacher middleware's env-toggle escape hatch for
// local development.
func jwtBearerAuth(authCfg config.AdminAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authCfg.Enabled {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == "" || tokenString == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		_, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(authCfg.Token), nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token: " + err.Error()})
			return
		}
		c.Next()
	}
}

// orchestratorHealthAdapter satisfies dispatcherHealthChecker from an
// *orchestration.Orchestrator's Dispatch field.
type orchestratorHealthAdapter struct {
	orch *orchestration.Orchestrator
}

func (a orchestratorHealthAdapter) HealthCheck(ctx context.Context) map[core.DataSource]bool {
	return a.orch.Dispatch.HealthCheck(ctx)
}

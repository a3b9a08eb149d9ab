// Package admin serves the optional HTTP side plane: liveness, readiness,
// metrics, and the registered operation list. It never touches protocol
// content on the socket plane.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/okriva/opgate/internal/observability"
	"github.com/okriva/opgate/internal/op"
)

type Plane struct {
	service string
	router  *op.Router
	engine  *gin.Engine
	started time.Time
}

func New(service string, router *op.Router, corsOrigins []string) *Plane {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminTelemetry(service, log.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	p := &Plane{
		service: service,
		router:  router,
		engine:  r,
		started: time.Now(),
	}
	p.registerRoutes()
	return p
}

func (p *Plane) registerRoutes() {
	p.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(p.started).String(),
			"service": p.service,
		})
	})

	p.engine.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(p.started).String(),
			"service": p.service,
		})
	})

	p.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	p.engine.GET("/operations", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"operations": p.router.Names(),
		})
	})
}

// Engine exposes the gin engine for tests.
func (p *Plane) Engine() *gin.Engine {
	return p.engine
}

// Serve blocks serving the admin plane on addr.
func (p *Plane) Serve(addr string) error {
	return p.engine.Run(addr)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/apiresponses"
	"github.com/ldruley/tripmailer/pkg/config"
	"github.com/ldruley/tripmailer/pkg/metrics"
	"github.com/ldruley/tripmailer/pkg/queue"
	"github.com/ldruley/tripmailer/pkg/ratelimit"
	"github.com/ldruley/tripmailer/pkg/version"
)

// APIController is one mountable unit of routes under /api.
type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// Server wraps the gin engine with the service's middleware stack and the
// unauthenticated operational endpoints (health, metrics, version).
type Server struct {
	gin     *gin.Engine
	config  config.Config
	broker  *queue.Broker
	limiter *ratelimit.IPRateLimiter
	http    *http.Server
}

// NewServer builds the HTTP server. Debug mode keeps gin verbose and allows
// cross-origin requests from the local frontend dev server.
func NewServer(log *zap.Logger, cfg config.Config, debug bool, broker *queue.Broker) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
	)
	if len(cfg.Server.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.Server.TrustedProxies)
	}

	if debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "127.0.0.1:8080"},
				AllowMethods: []string{"GET", "PUT", "PATCH", "POST", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:     engine,
		config:  cfg,
		broker:  broker,
		limiter: ratelimit.New(ratelimit.DefaultAPIConfig()),
	}

	engine.GET("/healthz", s.getHealth)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))
	engine.GET("api/version", s.getVersion)

	return s
}

// RegisterAll mounts the given controllers under /api behind the shared
// per-IP rate limiter.
func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api", s.limiter.Middleware())
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Listen serves HTTP until Shutdown is called or the listener fails.
func (s *Server) Listen() error {
	s.http = &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting new connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.gin }

func (s *Server) getHealth(c *gin.Context) {
	if s.broker != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.broker.Client().Ping(ctx).Err(); err != nil {
			apiresponses.RespondServiceUnavailable(c, "broker")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getVersion(c *gin.Context) {
	apiresponses.RespondOK(c, version.GetBuildInfo())
}

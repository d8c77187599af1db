package main

import (
	"net/http"

	"github.com/dhawalhost/sociallogin/internal/audit"
	"github.com/dhawalhost/sociallogin/internal/callback"
	"github.com/dhawalhost/sociallogin/internal/config"
	"github.com/dhawalhost/sociallogin/internal/login"
	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/dhawalhost/sociallogin/internal/social/facebook"
	"github.com/dhawalhost/sociallogin/internal/social/google"
	"github.com/dhawalhost/sociallogin/pkg/middleware"
	"github.com/dhawalhost/sociallogin/pkg/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// adapterOptions wires the provider clients and result hooks. The Facebook
// client keeps no session because every login belongs to a different user.
func adapterOptions(cfg *config.Config, log *zap.Logger, broker *callback.Broker, presenter social.Presenter, hooks ...social.ResultHook) []social.Option {
	opts := []social.Option{
		social.WithLogger(log),
		social.WithPresenter(presenter),
		social.WithFacebookLoginManager(func() (social.FacebookAuthClient, error) {
			return facebook.NewClient(cfg.FacebookClient(), broker, presenter,
				facebook.WithLogger(log),
				facebook.WithoutSessionCache(),
			), nil
		}),
	}
	if cfg.Google.ClientID != "" {
		opts = append(opts, social.WithGoogleSignIn(google.NewClient(cfg.GoogleClient(), broker, google.WithLogger(log))))
	}
	for _, hook := range hooks {
		opts = append(opts, social.WithResultHook(hook))
	}
	return opts
}

// routes holds what the HTTP router serves. audit is nil when the audit log
// is disabled.
type routes struct {
	gatherer prometheus.Gatherer
	metrics  *observability.Metrics
	broker   *callback.Broker
	logins   *login.Service
	audit    *audit.HTTPHandler
}

// newRouter builds the service router. The audit API is only mounted when an
// admin token is configured and every audit request must present it.
func newRouter(cfg *config.Config, log *zap.Logger, rt routes) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.Tracing.ServiceName),
		middleware.RequestID(),
		middleware.SecurityHeadersMiddleware(),
		observability.PrometheusMiddleware(rt.metrics),
	)
	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, middleware.RequestIDHeader)
		corsCfg.ExposeHeaders = []string{middleware.RequestIDHeader}
		r.Use(cors.New(corsCfg))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(observability.PrometheusHandler(rt.gatherer)))
	rt.broker.RegisterRoutes(r)

	api := r.Group("/api/v1")
	login.NewHTTPHandler(rt.logins, log,
		middleware.RateLimitMiddleware(rate.Limit(cfg.Server.RateLimit), cfg.Server.Burst),
	).RegisterRoutes(api)

	switch {
	case rt.audit == nil:
	case cfg.Server.AdminToken == "":
		log.Warn("No admin token configured, audit API disabled")
	default:
		rt.audit.RegisterRoutes(api, middleware.RequireBearerToken(cfg.Server.AdminToken))
	}
	return r
}

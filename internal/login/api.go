package login

import (
	"errors"
	"net/http"

	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPHandler exposes the login service over HTTP.
type HTTPHandler struct {
	svc    *Service
	logger *zap.Logger
	// startMiddleware guards login start, e.g. a rate limiter.
	startMiddleware []gin.HandlerFunc
}

// NewHTTPHandler creates a login HTTP handler. startMiddleware runs only in
// front of the login start route.
func NewHTTPHandler(svc *Service, logger *zap.Logger, startMiddleware ...gin.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger, startMiddleware: startMiddleware}
}

// RegisterRoutes registers login routes.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	start := append(append([]gin.HandlerFunc{}, h.startMiddleware...), h.startLogin)

	group := rg.Group("/social")
	{
		group.GET("/providers", h.providers)
		group.POST("/:provider/login", start...)
		group.GET("/logins/:id", h.getLogin)
	}
}

func (h *HTTPHandler) providers(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Providers())
}

func (h *HTTPHandler) startLogin(c *gin.Context) {
	provider, ok := social.ParseProvider(c.Param("provider"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	attempt, err := h.svc.Start(c.Request.Context(), provider)
	switch {
	case errors.Is(err, ErrUnsupportedProvider):
		c.JSON(http.StatusNotImplemented, gin.H{"error": "provider not supported"})
		return
	case errors.Is(err, ErrUnknownProvider):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	case err != nil:
		h.logger.Error("Failed to start login", zap.String("provider", string(provider)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}

	c.JSON(http.StatusAccepted, attempt)
}

func (h *HTTPHandler) getLogin(c *gin.Context) {
	attempt, err := h.svc.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "login not found"})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

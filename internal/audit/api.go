package audit

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPHandler handles login audit HTTP requests.
type HTTPHandler struct {
	svc    Service
	logger *zap.Logger
}

// NewHTTPHandler creates a new audit HTTP handler.
func NewHTTPHandler(svc Service, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers audit routes behind middleware, e.g. an admin
// token check.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup, middleware ...gin.HandlerFunc) {
	audit := rg.Group("/audit/logins", middleware...)
	{
		audit.GET("", h.queryEvents)
		audit.GET("/export", h.exportEvents)
		audit.GET("/:id", h.getEvent)
	}
}

func parseFilters(c *gin.Context) QueryParams {
	var params QueryParams
	if v := c.Query("provider"); v != "" {
		params.Provider = &v
	}
	if v := c.Query("code"); v != "" {
		params.Code = &v
	}
	if v := c.Query("login_id"); v != "" {
		params.LoginID = &v
	}
	if v := c.Query("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := c.Query("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}
	return params
}

func (h *HTTPHandler) queryEvents(c *gin.Context) {
	params := parseFilters(c)
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Offset = n
		}
	}

	events, total, err := h.svc.Query(c.Request.Context(), params)
	if err != nil {
		h.logger.Error("Failed to query login events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query login events"})
		return
	}
	if events == nil {
		events = []Event{}
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

func (h *HTTPHandler) getEvent(c *gin.Context) {
	event, err := h.svc.GetEvent(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get login event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get login event"})
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *HTTPHandler) exportEvents(c *gin.Context) {
	events, err := h.svc.Export(c.Request.Context(), parseFilters(c))
	if err != nil {
		h.logger.Error("Failed to export login events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export login events"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=social_login_events.csv")

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"Time", "Login ID", "Provider", "Code", "Provider User ID", "Display Name", "Email", "Error"})
	for _, e := range events {
		_ = writer.Write([]string{
			e.Timestamp.Format(time.RFC3339),
			strVal(e.LoginID),
			e.Provider,
			e.Code,
			strVal(e.ProviderUserID),
			strVal(e.DisplayName),
			strVal(e.Email),
			strVal(e.Error),
		})
	}
	writer.Flush()
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Package events fans login outcomes out to configured webhooks.
package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types, one per result code.
const (
	TypeLoginSucceeded = "login.succeeded"
	TypeLoginFailed    = "login.failed"
	TypeLoginCancelled = "login.cancelled"
	TypeLoginException = "login.exception"
)

// SignatureHeader carries the HMAC-SHA256 of the body.
const SignatureHeader = "X-Social-Signature"

// Event represents a login event.
type Event struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Payload   LoginPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

// LoginPayload is the credential-free view of a login result.
type LoginPayload struct {
	LoginID     string          `json:"login_id,omitempty"`
	Provider    social.Provider `json:"provider"`
	Code        string          `json:"code"`
	ID          string          `json:"id,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Email       string          `json:"email,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Target is a webhook receiving events. An empty Events list subscribes to
// every type.
type Target struct {
	URL    string   `mapstructure:"url" validate:"required,url"`
	Secret string   `mapstructure:"secret"`
	Events []string `mapstructure:"events"`
}

func (t Target) wants(eventType string) bool {
	return len(t.Events) == 0 || slices.Contains(t.Events, eventType)
}

// Dispatcher handles event publication.
type Dispatcher struct {
	targets    []Target
	logger     *zap.Logger
	httpClient *http.Client
	wg         sync.WaitGroup
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(targets []Target, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		targets:    targets,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EventFromResult builds the event for a login result.
func EventFromResult(loginID string, r social.LoginResult) Event {
	p := LoginPayload{
		LoginID:     loginID,
		Provider:    r.Provider,
		Code:        r.Code.String(),
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Email:       r.UserToken,
	}
	if r.Err != nil {
		p.Error = r.Err.Error()
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      typeFor(r.Code),
		Payload:   p,
		Timestamp: time.Now().UTC(),
	}
}

func typeFor(code social.ResultCode) string {
	switch code {
	case social.ResultSuccess:
		return TypeLoginSucceeded
	case social.ResultCancelled:
		return TypeLoginCancelled
	case social.ResultException:
		return TypeLoginException
	default:
		return TypeLoginFailed
	}
}

// Publish fires an event asynchronously.
func (d *Dispatcher) Publish(_ context.Context, event Event) {
	var hooks []Target
	for _, t := range d.targets {
		if t.wants(event.Type) {
			hooks = append(hooks, t)
		}
	}
	if len(hooks) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("Failed to marshal event payload", zap.Error(err))
		return
	}

	for _, hook := range hooks {
		d.wg.Add(1)
		go func(hook Target) {
			defer d.wg.Done()
			d.sendWebhook(context.Background(), hook, payload, event.ID)
		}(hook)
	}
}

// ResultHook publishes every login result. loginID extracts the login id
// from the login context; it may be nil.
func (d *Dispatcher) ResultHook(loginID func(context.Context) string) social.ResultHook {
	return func(ctx context.Context, result social.LoginResult) {
		var id string
		if loginID != nil {
			id = loginID(ctx)
		}
		d.Publish(ctx, EventFromResult(id, result))
	}
}

// Wait blocks until in-flight deliveries finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) sendWebhook(ctx context.Context, hook Target, payload []byte, eventID string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		d.logger.Error("Failed to create webhook request", zap.Error(err))
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Social-Event-ID", eventID)
	if hook.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(hook.Secret, payload))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("Webhook delivery failed", zap.String("url", hook.URL), zap.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		d.logger.Warn("Webhook received non-2xx response",
			zap.String("url", hook.URL),
			zap.Int("status", resp.StatusCode))
	} else {
		d.logger.Info("Webhook delivered successfully", zap.String("url", hook.URL))
	}
}

// Sign returns the hex HMAC-SHA256 of payload keyed with secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Package callback receives provider authorization redirects and hands them
// to the login waiting for them.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Errors returned by Deliver.
var (
	ErrUnknownState     = errors.New("unknown or expired state")
	ErrProviderMismatch = errors.New("state belongs to another provider")
)

// Response is what a provider sent back to the redirect URL.
type Response struct {
	State            string
	Code             string
	IDToken          string
	Error            string
	ErrorReason      string
	ErrorDescription string
}

// Denied reports whether the user refused the authorization.
func (r Response) Denied() bool {
	return r.Error == "access_denied" || r.ErrorReason == "user_denied"
}

// ProviderError is an error reported by the provider on the redirect.
type ProviderError struct {
	Provider    string
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Description)
}

// AsError turns a provider error response into a *ProviderError. It returns
// nil for responses that carry no error.
func (r Response) AsError(provider string) error {
	if r.Error == "" {
		return nil
	}
	return &ProviderError{Provider: provider, Code: r.Error, Description: r.ErrorDescription}
}

// Broker matches redirects to pending authorizations by state.
type Broker struct {
	baseURL string
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]*Pending
}

// NewBroker creates a broker whose redirect URLs live under baseURL.
func NewBroker(baseURL string, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		pending: make(map[string]*Pending),
	}
}

// SetBaseURL changes where redirect URLs point, e.g. once a loopback listener
// picked its port.
func (b *Broker) SetBaseURL(baseURL string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseURL = strings.TrimRight(baseURL, "/")
}

// RedirectURL is the callback URL registered with provider.
func (b *Broker) RedirectURL(provider string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("%s/oauth/%s/callback", b.baseURL, provider)
}

// Begin registers a new pending authorization for provider.
func (b *Broker) Begin(provider string) *Pending {
	p := &Pending{
		State:    uuid.NewString(),
		Provider: provider,
		broker:   b,
		ch:       make(chan Response, 1),
	}
	b.mu.Lock()
	b.pending[p.State] = p
	b.mu.Unlock()
	return p
}

// Deliver hands resp to the authorization identified by resp.State.
func (b *Broker) Deliver(provider string, resp Response) error {
	b.mu.Lock()
	p, ok := b.pending[resp.State]
	if ok && p.Provider == provider {
		delete(b.pending, resp.State)
	}
	b.mu.Unlock()

	switch {
	case !ok:
		return ErrUnknownState
	case p.Provider != provider:
		return ErrProviderMismatch
	}
	p.ch <- resp
	return nil
}

// Outstanding is the number of authorizations still waiting for a redirect.
func (b *Broker) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Broker) forget(state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, state)
}

// Pending is one authorization waiting for its redirect.
type Pending struct {
	State    string
	Provider string

	broker *Broker
	ch     chan Response
}

// Wait blocks until the redirect arrived or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Response, error) {
	defer p.broker.forget(p.State)
	select {
	case resp := <-p.ch:
		return resp, nil
	case <-ctx.Done():
		return Response{}, fmt.Errorf("waiting for %s redirect: %w", p.Provider, ctx.Err())
	}
}

// Cancel drops the authorization; a later redirect for it is rejected.
func (p *Pending) Cancel() {
	p.broker.forget(p.State)
}

// RegisterRoutes mounts the redirect endpoints.
func (b *Broker) RegisterRoutes(r gin.IRoutes) {
	r.GET("/oauth/:provider/callback", b.handleRedirect)
	r.POST("/oauth/:provider/callback", b.handleRedirect)
}

func (b *Broker) handleRedirect(c *gin.Context) {
	provider := c.Param("provider")
	if err := c.Request.ParseForm(); err != nil {
		b.logger.Warn("Failed to parse redirect", zap.String("provider", provider), zap.Error(err))
		renderPage(c, http.StatusBadRequest, "Sign-in failed", "The provider response could not be read.")
		return
	}
	form := c.Request.Form
	resp := Response{
		State:            form.Get("state"),
		Code:             form.Get("code"),
		IDToken:          form.Get("id_token"),
		Error:            form.Get("error"),
		ErrorReason:      form.Get("error_reason"),
		ErrorDescription: form.Get("error_description"),
	}

	if err := b.Deliver(provider, resp); err != nil {
		b.logger.Warn("Rejected redirect", zap.String("provider", provider), zap.Error(err))
		renderPage(c, http.StatusBadRequest, "Sign-in failed", "This sign-in link is no longer valid.")
		return
	}

	switch {
	case resp.Denied():
		renderPage(c, http.StatusOK, "Sign-in cancelled", "You can close this window.")
	case resp.Error != "":
		renderPage(c, http.StatusOK, "Sign-in failed", resp.ErrorDescription)
	default:
		renderPage(c, http.StatusOK, "Signed in", "You can close this window and return to the application.")
	}
}

package login

import (
	"context"
	"errors"

	"github.com/dhawalhost/sociallogin/internal/social"
	"go.uber.org/zap"
)

type loginIDKey struct{}

// ErrNoLoginID is returned when a page is presented outside a tracked login.
var ErrNoLoginID = errors.New("no login id in context")

// WithLoginID returns a context carrying the tracked login id.
func WithLoginID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, loginIDKey{}, id)
}

// LoginIDFromContext returns the login id set by WithLoginID.
func LoginIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(loginIDKey{}).(string)
	return id, ok && id != ""
}

// Presenter publishes authorization pages to the tracker so the HTTP client
// that started the login can redirect its user there.
type Presenter struct {
	tracker *Tracker
	logger  *zap.Logger
}

// NewPresenter creates a presenter publishing to tracker.
func NewPresenter(tracker *Tracker, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{tracker: tracker, logger: logger}
}

// Present records page as the authorize URL of the login in ctx.
func (p *Presenter) Present(ctx context.Context, page social.AuthPage) error {
	id, ok := LoginIDFromContext(ctx)
	if !ok {
		return ErrNoLoginID
	}
	if err := p.tracker.SetAuthorizeURL(id, page.URL); err != nil {
		return err
	}
	p.logger.Debug("Authorization page published", zap.String("login_id", id), zap.String("provider", string(page.Provider)))
	return nil
}

// Dismiss is a no-op; the HTTP client leaves the page on its own.
func (p *Presenter) Dismiss(context.Context, social.AuthPage) {}

package login

import (
	"context"
	"errors"
	"time"

	"github.com/dhawalhost/sociallogin/internal/social"
	"go.uber.org/zap"
)

// Errors returned by Start.
var (
	ErrUnsupportedProvider = errors.New("provider not supported")
	ErrUnknownProvider     = errors.New("unknown provider")
)

// Authenticator is the part of the social adapter the service drives.
type Authenticator interface {
	LoginWithFacebook(ctx context.Context, callback social.Callback)
	LoginWithGoogle(ctx context.Context, callback social.Callback)
}

// Service starts background logins and tracks their outcome.
type Service struct {
	auth        Authenticator
	tracker     *Tracker
	providers   social.InitializationResult
	timeout     time.Duration
	presentWait time.Duration
	logger      *zap.Logger
}

// NewService creates a login service. providers is the result of the
// adapter's Init. Each login is abandoned after timeout.
func NewService(auth Authenticator, tracker *Tracker, providers social.InitializationResult, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		auth:        auth,
		tracker:     tracker,
		providers:   providers,
		timeout:     timeout,
		presentWait: 10 * time.Second,
		logger:      logger,
	}
}

// Providers reports which providers Init set up.
func (s *Service) Providers() social.InitializationResult {
	return s.providers
}

// Start begins a login for provider and returns once the authorization page
// is known or the login already finished.
func (s *Service) Start(ctx context.Context, provider social.Provider) (Attempt, error) {
	var run func(context.Context, social.Callback)
	switch provider {
	case social.ProviderFacebook:
		run = s.auth.LoginWithFacebook
	case social.ProviderGoogle:
		run = s.auth.LoginWithGoogle
	case social.ProviderTwitter:
		return Attempt{}, ErrUnsupportedProvider
	default:
		return Attempt{}, ErrUnknownProvider
	}

	attempt := s.tracker.Begin(provider)
	// The login outlives the request but keeps its values for tracing.
	loginCtx, cancel := context.WithTimeout(WithLoginID(context.WithoutCancel(ctx), attempt.ID), s.timeout)
	run(loginCtx, func(result social.LoginResult) {
		cancel()
		if err := s.tracker.Complete(attempt.ID, result); err != nil {
			s.logger.Warn("Login finished after it expired", zap.String("login_id", attempt.ID), zap.Error(err))
		}
	})

	waitCtx, stop := context.WithTimeout(ctx, s.presentWait)
	defer stop()
	return s.tracker.Await(waitCtx, attempt.ID)
}

// Get returns a tracked login.
func (s *Service) Get(id string) (Attempt, error) {
	return s.tracker.Get(id)
}

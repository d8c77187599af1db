// Package social exposes Facebook and Google sign-in through one
// callback-based API and normalizes every provider outcome into a LoginResult.
package social

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/dhawalhost/sociallogin/internal/social"

// Log tags attached to adapter messages.
const (
	tagInit     = "init"
	tagFacebook = "facebookLoginManager"
	tagGoogle   = "loginWithGoogle"
	tagTwitter  = "loginWithTwitter"
)

// Adapter relays one-shot provider logins to caller callbacks. At most one
// login per provider is in flight; a second one is answered with
// ErrLoginInProgress.
type Adapter struct {
	config    Config
	logger    *zap.Logger
	tracer    trace.Tracer
	presenter Presenter
	hooks     []ResultHook

	newFacebookLoginManager func() (FacebookAuthClient, error)
	sharedGoogleSignIn      GoogleAuthClient

	mu                   sync.RWMutex
	facebookLoginManager FacebookAuthClient
	googleSignIn         GoogleAuthClient

	facebookBusy atomic.Bool
	googleBusy   atomic.Bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for adapter messages and results.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Adapter) { a.tracer = tracer }
}

// WithPresenter sets the host component that shows authorization pages.
func WithPresenter(p Presenter) Option {
	return func(a *Adapter) { a.presenter = p }
}

// WithFacebookLoginManager sets the factory Init uses to create the Facebook
// login manager.
func WithFacebookLoginManager(factory func() (FacebookAuthClient, error)) Option {
	return func(a *Adapter) { a.newFacebookLoginManager = factory }
}

// WithGoogleSignIn sets the shared Google sign-in instance Init configures.
func WithGoogleSignIn(client GoogleAuthClient) Option {
	return func(a *Adapter) { a.sharedGoogleSignIn = client }
}

// WithResultHook registers a hook that sees every delivered result.
func WithResultHook(hook ResultHook) Option {
	return func(a *Adapter) { a.hooks = append(a.hooks, hook) }
}

// New creates an adapter for cfg. Call Init before any login.
func New(cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		config: cfg,
		logger: zap.NewNop(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init sets up every configured provider and records which ones are ready in
// result. Providers without configuration are skipped.
func (a *Adapter) Init(result *InitializationResult) *InitializationResult {
	if result == nil {
		result = &InitializationResult{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if fb := a.config.Facebook; fb != nil {
		a.facebookLoginManager = a.createFacebookLoginManager()
		if a.facebookLoginManager != nil {
			if fb.ClearSession {
				a.facebookLoginManager.LogOut()
			}
			if fb.LoginBehavior != "" {
				a.facebookLoginManager.SetLoginBehavior(fb.LoginBehavior)
			}
			result.Facebook.IsInitialized = true
		}
	}

	if g := a.config.Google; g != nil {
		a.googleSignIn = a.sharedGoogleSignIn
		if a.googleSignIn != nil {
			a.googleSignIn.SetShouldFetchBasicProfile(g.ShouldFetchBasicProfile)
			a.googleSignIn.SetScopes(g.Scopes)
			if g.ServerClientID != "" && g.IsRequestAuthCode {
				a.googleSignIn.SetServerClientID(g.ServerClientID)
			}
		} else {
			a.logger.Warn("google configured without a sign-in instance", zap.String("tag", tagInit))
		}
		result.Google.IsInitialized = true
	}

	return result
}

func (a *Adapter) createFacebookLoginManager() FacebookAuthClient {
	if a.newFacebookLoginManager == nil {
		a.logger.Warn("facebook configured without a login manager factory", zap.String("tag", tagInit))
		return nil
	}
	manager, err := a.newFacebookLoginManager()
	if err != nil {
		a.logger.Warn("facebook login manager unavailable", zap.String("tag", tagInit), zap.Error(err))
		return nil
	}
	return manager
}

// LoginWithFacebook runs one Facebook login and hands the result to callback
// on another goroutine. A nil callback skips the login entirely.
func (a *Adapter) LoginWithFacebook(ctx context.Context, callback Callback) {
	if callback == nil {
		a.logMsg("no callback given, login skipped", tagFacebook)
		return
	}

	a.mu.RLock()
	manager := a.facebookLoginManager
	a.mu.RUnlock()

	if manager == nil {
		go a.deliver(ctx, ProviderFacebook, tagFacebook, callback, failed(ErrNotInitialized))
		return
	}
	if !a.facebookBusy.CompareAndSwap(false, true) {
		go a.deliver(ctx, ProviderFacebook, tagFacebook, callback, failed(ErrLoginInProgress))
		return
	}

	go func() {
		ctx, span := a.startSpan(ctx, "social.LoginWithFacebook", ProviderFacebook)
		defer span.End()

		result := a.runFacebookLogin(ctx, manager)
		a.facebookBusy.Store(false)

		finishSpan(span, result)
		a.deliver(ctx, ProviderFacebook, tagFacebook, callback, result)
	}()
}

// LoginWithGoogle runs one Google sign-in and hands the result to callback on
// another goroutine. A nil callback skips the sign-in entirely.
func (a *Adapter) LoginWithGoogle(ctx context.Context, callback Callback) {
	if callback == nil {
		a.logMsg("no callback given, sign-in skipped", tagGoogle)
		return
	}

	a.mu.RLock()
	signIn := a.googleSignIn
	a.mu.RUnlock()

	if signIn == nil {
		go a.deliver(ctx, ProviderGoogle, tagGoogle, callback, failed(ErrNotInitialized))
		return
	}
	if !a.googleBusy.CompareAndSwap(false, true) {
		go a.deliver(ctx, ProviderGoogle, tagGoogle, callback, failed(ErrLoginInProgress))
		return
	}

	go func() {
		ctx, span := a.startSpan(ctx, "social.LoginWithGoogle", ProviderGoogle)
		defer span.End()

		result := a.runGoogleSignIn(ctx, signIn)
		a.googleBusy.Store(false)

		finishSpan(span, result)
		a.deliver(ctx, ProviderGoogle, tagGoogle, callback, result)
	}()
}

// LoginWithTwitter is not supported; callback is never invoked.
func (a *Adapter) LoginWithTwitter(_ context.Context, _ Callback) {
	a.logMsg("twitter login is not supported", tagTwitter)
}

func (a *Adapter) deliver(ctx context.Context, provider Provider, tag string, callback Callback, result LoginResult) {
	result.Provider = provider
	a.logResult(result, tag)
	for _, hook := range a.hooks {
		hook(ctx, result)
	}
	callback(result)
}

func (a *Adapter) startSpan(ctx context.Context, name string, provider Provider) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("social.provider", string(provider))))
}

func finishSpan(span trace.Span, result LoginResult) {
	span.SetAttributes(attribute.String("social.result", result.Code.String()))
	if result.Err != nil && (result.Code == ResultFailed || result.Code == ResultException) {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}
}

func failed(err error) LoginResult {
	return LoginResult{Code: ResultFailed, Err: err}
}

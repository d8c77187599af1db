// Package google implements the shared Google sign-in instance with the
// OAuth 2.0 authorization endpoint and OpenID Connect identity tokens.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dhawalhost/sociallogin/internal/callback"
	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	googleendpoint "golang.org/x/oauth2/google"
)

const providerName = "google"

var (
	errDenied = errors.New("user denied sign-in")
	// ErrNoIDToken is returned when the token response carries no id_token.
	ErrNoIDToken = errors.New("token response has no id_token")
	// ErrIncompleteResponse is returned when a hybrid redirect lacks the code
	// or the identity token.
	ErrIncompleteResponse = errors.New("redirect is missing code or id_token")
)

// Config holds the client credentials and endpoint overrides.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
}

// Client is the Google sign-in instance. Its settings are shared by every
// SignIn call.
type Client struct {
	cfg        Config
	endpoint   oauth2.Endpoint
	broker     *callback.Broker
	verifier   *IDTokenVerifier
	httpClient *http.Client
	logger     *zap.Logger

	mu             sync.RWMutex
	fetchProfile   bool
	scopes         []string
	serverClientID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithVerifier sets the identity token verifier.
func WithVerifier(v *IDTokenVerifier) Option {
	return func(c *Client) { c.verifier = v }
}

// NewClient creates a sign-in instance receiving redirects through broker.
func NewClient(cfg Config, broker *callback.Broker, opts ...Option) *Client {
	endpoint := googleendpoint.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	c := &Client{
		cfg:          cfg,
		endpoint:     endpoint,
		broker:       broker,
		httpClient:   http.DefaultClient,
		logger:       zap.NewNop(),
		fetchProfile: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.verifier == nil {
		c.verifier = NewIDTokenVerifier(WithVerifierHTTPClient(c.httpClient))
	}
	return c
}

// SetShouldFetchBasicProfile controls whether sign-in asks for the email and
// profile scopes.
func (c *Client) SetShouldFetchBasicProfile(fetch bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchProfile = fetch
}

// SetScopes sets extra scopes requested on top of the defaults.
func (c *Client) SetScopes(scopes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes = append([]string(nil), scopes...)
}

// SetServerClientID switches SignIn to issuing an offline auth code for the
// given backend client. An empty id restores the default flow.
func (c *Client) SetServerClientID(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverClientID = clientID
}

type settings struct {
	fetchProfile   bool
	scopes         []string
	serverClientID string
}

func (c *Client) settings() settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return settings{
		fetchProfile:   c.fetchProfile,
		scopes:         append([]string(nil), c.scopes...),
		serverClientID: c.serverClientID,
	}
}

func (s settings) allScopes() []string {
	scopes := []string{"openid"}
	if s.fetchProfile {
		scopes = append(scopes, "email", "profile")
	}
	for _, sc := range s.scopes {
		seen := false
		for _, have := range scopes {
			if have == sc {
				seen = true
				break
			}
		}
		if !seen {
			scopes = append(scopes, sc)
		}
	}
	return scopes
}

// SignIn runs one sign-in and reports its outcome to delegate.
func (c *Client) SignIn(ctx context.Context, delegate social.GoogleSignInDelegate) {
	user, err := c.signIn(ctx, delegate)
	switch {
	case errors.Is(err, errDenied):
		delegate.DidDisconnect(nil, nil)
	case err != nil:
		delegate.DidSignIn(nil, err)
	default:
		delegate.DidSignIn(user, nil)
	}
}

func (c *Client) signIn(ctx context.Context, delegate social.GoogleSignInDelegate) (*social.GoogleUser, error) {
	s := c.settings()
	pending := c.broker.Begin(providerName)
	defer pending.Cancel()

	nonce := uuid.NewString()
	conf := oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint:     c.endpoint,
		RedirectURL:  c.broker.RedirectURL(providerName),
		Scopes:       s.allScopes(),
	}

	params := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("nonce", nonce)}
	var verifier string
	if s.serverClientID != "" {
		conf.ClientID = s.serverClientID
		params = append(params,
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("response_type", "code id_token"),
			oauth2.SetAuthURLParam("response_mode", "form_post"),
		)
	} else {
		verifier = oauth2.GenerateVerifier()
		params = append(params, oauth2.S256ChallengeOption(verifier))
	}

	page := social.AuthPage{Provider: social.ProviderGoogle, URL: conf.AuthCodeURL(pending.State, params...)}
	if err := delegate.PresentSignIn(ctx, page); err != nil {
		return nil, err
	}
	resp, err := pending.Wait(ctx)
	delegate.DismissSignIn(ctx, page)
	if err != nil {
		return nil, err
	}

	if resp.Denied() {
		return nil, errDenied
	}
	if err := resp.AsError(providerName); err != nil {
		return nil, err
	}

	if s.serverClientID != "" {
		return c.hybridUser(ctx, s, resp, nonce)
	}
	return c.exchangeUser(ctx, s, &conf, resp, verifier, nonce)
}

// hybridUser hands the code back untouched; only the backend holding the
// server client secret can redeem it.
func (c *Client) hybridUser(ctx context.Context, s settings, resp callback.Response, nonce string) (*social.GoogleUser, error) {
	if resp.Code == "" || resp.IDToken == "" {
		return nil, ErrIncompleteResponse
	}
	claims, err := c.verifier.Verify(ctx, resp.IDToken, s.serverClientID, nonce)
	if err != nil {
		return nil, err
	}
	return newUser(claims, s.fetchProfile, resp.Code, &social.GoogleAuthentication{IDToken: resp.IDToken}), nil
}

func (c *Client) exchangeUser(ctx context.Context, s settings, conf *oauth2.Config, resp callback.Response, verifier, nonce string) (*social.GoogleUser, error) {
	tok, err := conf.Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), resp.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange google code: %w", err)
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, ErrNoIDToken
	}
	claims, err := c.verifier.Verify(ctx, rawID, conf.ClientID, nonce)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Google code exchanged", zap.String("sub", claims.Subject))
	return newUser(claims, s.fetchProfile, "", &social.GoogleAuthentication{
		IDToken:     rawID,
		AccessToken: tok.AccessToken,
	}), nil
}

// newUser leaves Profile nil unless the basic profile was requested.
func newUser(claims *IDClaims, withProfile bool, serverAuthCode string, auth *social.GoogleAuthentication) *social.GoogleUser {
	user := &social.GoogleUser{
		UserID:         claims.Subject,
		ServerAuthCode: serverAuthCode,
		Authentication: auth,
	}
	if withProfile {
		user.Profile = &social.GoogleProfile{
			Email:      claims.Email,
			Name:       claims.Name,
			GivenName:  claims.GivenName,
			FamilyName: claims.FamilyName,
			ImageURL:   claims.Picture,
		}
	}
	return user
}

// Package facebook implements the Facebook login manager on top of the
// OAuth dialog and the Graph API.
package facebook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dhawalhost/sociallogin/internal/callback"
	"github.com/dhawalhost/sociallogin/internal/social"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	fbendpoint "golang.org/x/oauth2/facebook"
)

const (
	providerName        = "facebook"
	defaultGraphURL     = "https://graph.facebook.com"
	defaultGraphVersion = "v18.0"
)

// Config holds the app credentials and endpoints.
type Config struct {
	AppID        string
	AppSecret    string
	GraphVersion string
	// GraphURL, AuthURL and TokenURL override the public endpoints.
	GraphURL string
	AuthURL  string
	TokenURL string
}

// Client is a Facebook login manager. Unless built WithoutSessionCache it
// keeps the session of the last successful login until LogOut.
type Client struct {
	oauth      oauth2.Config
	graphURL   string
	version    string
	appSecret  string
	broker     *callback.Broker
	presenter  social.Presenter
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
	noCache    bool

	mu       sync.Mutex
	behavior social.LoginBehavior
	session  *session
}

type session struct {
	token       *social.AccessToken
	permissions map[string]bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for token and Graph requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithoutSessionCache makes every LogIn run the dialog and keeps no session
// between calls. Use it when one client serves many users.
func WithoutSessionCache() Option {
	return func(c *Client) { c.noCache = true }
}

// NewClient creates a login manager that shows its dialog through presenter
// and receives the redirect through broker.
func NewClient(cfg Config, broker *callback.Broker, presenter social.Presenter, opts ...Option) *Client {
	endpoint := fbendpoint.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	c := &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			Endpoint:     endpoint,
		},
		graphURL:   strings.TrimRight(cfg.GraphURL, "/"),
		version:    cfg.GraphVersion,
		appSecret:  cfg.AppSecret,
		broker:     broker,
		presenter:  presenter,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
		now:        time.Now,
		behavior:   social.LoginBehaviorBrowser,
	}
	if c.graphURL == "" {
		c.graphURL = defaultGraphURL
	}
	if c.version == "" {
		c.version = defaultGraphVersion
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LogOut drops the cached session.
func (c *Client) LogOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}

// SetLoginBehavior selects how the dialog is displayed.
func (c *Client) SetLoginBehavior(behavior social.LoginBehavior) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.behavior = behavior
}

func displayFor(behavior social.LoginBehavior) string {
	switch behavior {
	case social.LoginBehaviorWeb:
		return "popup"
	case social.LoginBehaviorNative:
		return "touch"
	default:
		return "page"
	}
}

// LogIn returns the cached session when it is still valid and covers
// permissions. Otherwise it runs the OAuth dialog.
func (c *Client) LogIn(ctx context.Context, permissions []string) (*social.FacebookLoginResult, error) {
	if res := c.cachedLogin(permissions); res != nil {
		c.logger.Debug("Reusing Facebook session")
		return res, nil
	}
	if c.presenter == nil {
		return nil, social.ErrNoPresenter
	}

	c.mu.Lock()
	display := displayFor(c.behavior)
	c.mu.Unlock()

	conf := c.oauth
	conf.Scopes = permissions
	conf.RedirectURL = c.broker.RedirectURL(providerName)

	pending := c.broker.Begin(providerName)
	defer pending.Cancel()

	page := social.AuthPage{
		Provider: social.ProviderFacebook,
		URL:      conf.AuthCodeURL(pending.State, oauth2.SetAuthURLParam("display", display)),
	}
	if err := c.presenter.Present(ctx, page); err != nil {
		return nil, fmt.Errorf("present login dialog: %w", err)
	}
	resp, err := pending.Wait(ctx)
	c.presenter.Dismiss(ctx, page)
	if err != nil {
		return nil, err
	}

	if resp.Denied() {
		return &social.FacebookLoginResult{IsCancelled: true}, nil
	}
	if err := resp.AsError(providerName); err != nil {
		return nil, err
	}

	tok, err := conf.Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), resp.Code)
	if err != nil {
		return nil, fmt.Errorf("exchange facebook code: %w", err)
	}

	accessToken := &social.AccessToken{TokenString: tok.AccessToken, Expiry: tok.Expiry}
	userID, err := c.fetchUserID(ctx, accessToken.TokenString)
	if err != nil {
		return nil, err
	}
	accessToken.UserID = userID

	granted, declined, err := c.fetchPermissions(ctx, accessToken.TokenString)
	if err != nil {
		return nil, err
	}

	perms := make(map[string]bool, len(granted))
	for _, p := range granted {
		perms[p] = true
	}
	if !c.noCache {
		c.mu.Lock()
		c.session = &session{token: accessToken, permissions: perms}
		c.mu.Unlock()
	}

	return &social.FacebookLoginResult{
		Token:               accessToken,
		GrantedPermissions:  granted,
		DeclinedPermissions: declined,
	}, nil
}

func (c *Client) cachedLogin(permissions []string) *social.FacebookLoginResult {
	if c.noCache {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s == nil || s.token == nil {
		return nil
	}
	if !s.token.Expiry.IsZero() && !c.now().Before(s.token.Expiry) {
		c.session = nil
		return nil
	}
	granted := make([]string, 0, len(s.permissions))
	for _, p := range permissions {
		if !s.permissions[p] {
			return nil
		}
		granted = append(granted, p)
	}
	token := *s.token
	return &social.FacebookLoginResult{Token: &token, GrantedPermissions: granted}
}

// FetchProfile performs a Graph GET and returns the response body.
func (c *Client) FetchProfile(ctx context.Context, req social.GraphRequest) (json.RawMessage, error) {
	return c.graphGet(ctx, req)
}

func (c *Client) fetchUserID(ctx context.Context, token string) (string, error) {
	body, err := c.graphGet(ctx, social.GraphRequest{Path: "me", Fields: []string{"id"}, Token: token})
	if err != nil {
		return "", err
	}
	var me struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		return "", fmt.Errorf("decode graph user: %w", err)
	}
	return me.ID, nil
}

func (c *Client) fetchPermissions(ctx context.Context, token string) (granted, declined []string, err error) {
	body, err := c.graphGet(ctx, social.GraphRequest{Path: "me/permissions", Token: token})
	if err != nil {
		return nil, nil, err
	}
	var perms struct {
		Data []struct {
			Permission string `json:"permission"`
			Status     string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &perms); err != nil {
		return nil, nil, fmt.Errorf("decode graph permissions: %w", err)
	}
	for _, p := range perms.Data {
		if p.Status == "granted" {
			granted = append(granted, p.Permission)
		} else {
			declined = append(declined, p.Permission)
		}
	}
	return granted, declined, nil
}

func (c *Client) graphGet(ctx context.Context, req social.GraphRequest) (json.RawMessage, error) {
	q := url.Values{}
	if len(req.Fields) > 0 {
		q.Set("fields", strings.Join(req.Fields, ","))
	}
	if req.Token != "" {
		q.Set("access_token", req.Token)
		if c.appSecret != "" {
			q.Set("appsecret_proof", appSecretProof(c.appSecret, req.Token))
		}
	}
	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.graphURL, c.version, strings.TrimLeft(req.Path, "/"), q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("graph request %s: %w", req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeGraphError(resp.StatusCode, body)
	}
	return json.RawMessage(body), nil
}

// appSecretProof signs token with the app secret as the Graph API expects.
func appSecretProof(secret, token string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/go-jose/go-jose.v2"
)

const (
	defaultJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"
	defaultKeysTTL  = time.Hour
	minRefreshDelay = 30 * time.Second
)

var defaultIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Errors returned by Verify.
var (
	ErrUnknownKey    = errors.New("id token signed with unknown key")
	ErrInvalidIssuer = errors.New("id token issuer not accepted")
	ErrNonceMismatch = errors.New("id token nonce mismatch")
)

// IDClaims are the claims read from a Google identity token.
type IDClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
}

// IDTokenVerifier checks identity tokens against Google's published keys.
// Keys are cached and refetched when they age out or a token names an
// unknown key id.
type IDTokenVerifier struct {
	jwksURL    string
	issuers    []string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu        sync.Mutex
	keys      jose.JSONWebKeySet
	fetchedAt time.Time
}

// VerifierOption configures an IDTokenVerifier.
type VerifierOption func(*IDTokenVerifier)

// WithJWKSURL overrides where keys are fetched from.
func WithJWKSURL(u string) VerifierOption {
	return func(v *IDTokenVerifier) { v.jwksURL = u }
}

// WithIssuers overrides the accepted issuers.
func WithIssuers(issuers ...string) VerifierOption {
	return func(v *IDTokenVerifier) { v.issuers = issuers }
}

// WithVerifierHTTPClient sets the client used to fetch keys.
func WithVerifierHTTPClient(hc *http.Client) VerifierOption {
	return func(v *IDTokenVerifier) { v.httpClient = hc }
}

// NewIDTokenVerifier creates a verifier for Google identity tokens.
func NewIDTokenVerifier(opts ...VerifierOption) *IDTokenVerifier {
	v := &IDTokenVerifier{
		jwksURL:    defaultJWKSURL,
		issuers:    defaultIssuers,
		httpClient: http.DefaultClient,
		ttl:        defaultKeysTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses raw and checks its signature, audience, issuer, expiry and,
// when nonce is set, its nonce.
func (v *IDTokenVerifier) Verify(ctx context.Context, raw, audience, nonce string) (*IDClaims, error) {
	claims := &IDClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if !slices.Contains(v.issuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIssuer, claims.Issuer)
	}
	if nonce != "" && claims.Nonce != nonce {
		return nil, ErrNonceMismatch
	}
	return claims, nil
}

func (v *IDTokenVerifier) key(ctx context.Context, kid string) (interface{}, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	stale := v.now().Sub(v.fetchedAt) > v.ttl
	if !stale {
		if k := lookupKey(v.keys, kid); k != nil {
			return k, nil
		}
	}
	if !stale && v.now().Sub(v.fetchedAt) < minRefreshDelay {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}

	keys, err := v.fetch(ctx)
	if err != nil {
		return nil, err
	}
	v.keys = keys
	v.fetchedAt = v.now()

	if k := lookupKey(v.keys, kid); k != nil {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
}

func lookupKey(set jose.JSONWebKeySet, kid string) interface{} {
	if kid == "" {
		if len(set.Keys) == 1 {
			return set.Keys[0].Key
		}
		return nil
	}
	for _, k := range set.Key(kid) {
		if k.Use == "" || k.Use == "sig" {
			return k.Key
		}
	}
	return nil
}

func (v *IDTokenVerifier) fetch(ctx context.Context) (jose.JSONWebKeySet, error) {
	var set jose.JSONWebKeySet
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return set, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return set, fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return set, fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return set, fmt.Errorf("decode jwks: %w", err)
	}
	return set, nil
}

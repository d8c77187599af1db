package social

import (
	"context"
	"encoding/json"
	"time"
)

// AccessToken is the credential returned by a successful Facebook login.
type AccessToken struct {
	TokenString string
	UserID      string
	Expiry      time.Time
}

// FacebookLoginResult is what the login manager reports when a login finishes
// without error.
type FacebookLoginResult struct {
	Token               *AccessToken
	IsCancelled         bool
	GrantedPermissions  []string
	DeclinedPermissions []string
}

// GraphRequest describes a Graph API read.
type GraphRequest struct {
	Path   string
	Fields []string
	Token  string
}

// FacebookAuthClient is the subset of the Facebook login manager the adapter
// relies on.
type FacebookAuthClient interface {
	// LogOut drops any session the manager holds.
	LogOut()
	SetLoginBehavior(behavior LoginBehavior)
	// LogIn blocks until the user finished, cancelled or the login failed. A
	// nil result with a nil error is a protocol violation the caller handles.
	LogIn(ctx context.Context, permissions []string) (*FacebookLoginResult, error)
	// FetchProfile returns the undecoded Graph response body.
	FetchProfile(ctx context.Context, req GraphRequest) (json.RawMessage, error)
}

// GoogleProfile is the basic profile attached to a signed-in Google user.
type GoogleProfile struct {
	Email      string
	Name       string
	GivenName  string
	FamilyName string
	ImageURL   string
}

// GoogleAuthentication carries the tokens of a signed-in Google user.
type GoogleAuthentication struct {
	IDToken     string
	AccessToken string
}

// GoogleUser is a signed-in Google account.
type GoogleUser struct {
	UserID         string
	ServerAuthCode string
	Profile        *GoogleProfile
	Authentication *GoogleAuthentication
}

// GoogleSignInDelegate receives the outcome of one SignIn call and the UI
// requests made while it runs.
type GoogleSignInDelegate interface {
	DidSignIn(user *GoogleUser, err error)
	DidDisconnect(user *GoogleUser, err error)
	PresentSignIn(ctx context.Context, page AuthPage) error
	DismissSignIn(ctx context.Context, page AuthPage)
}

// GoogleAuthClient is the subset of the shared Google sign-in instance the
// adapter relies on.
type GoogleAuthClient interface {
	SetShouldFetchBasicProfile(fetch bool)
	SetScopes(scopes []string)
	SetServerClientID(clientID string)
	// SignIn runs one sign-in and reports to delegate through exactly one of
	// DidSignIn or DidDisconnect before returning.
	SignIn(ctx context.Context, delegate GoogleSignInDelegate)
}

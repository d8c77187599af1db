package social

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider identifies an external identity source.
type Provider string

const (
	ProviderFacebook Provider = "facebook"
	ProviderGoogle   Provider = "google"
	ProviderTwitter  Provider = "twitter"
)

// ParseProvider maps a path or config value onto a known provider.
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(s); p {
	case ProviderFacebook, ProviderGoogle, ProviderTwitter:
		return p, true
	default:
		return "", false
	}
}

// ResultCode is the outcome of a login attempt, shared across providers.
type ResultCode int

const (
	ResultSuccess ResultCode = iota
	ResultFailed
	ResultCancelled
	// ResultException is only produced by the Facebook flow, when the profile
	// lookup that follows a successful login cannot be read.
	ResultException
)

var resultCodeNames = map[ResultCode]string{
	ResultSuccess:   "success",
	ResultFailed:    "failed",
	ResultCancelled: "cancelled",
	ResultException: "exception",
}

func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c ResultCode) MarshalText() ([]byte, error) {
	name, ok := resultCodeNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown result code %d", int(c))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ResultCode) UnmarshalText(text []byte) error {
	for code, name := range resultCodeNames {
		if name == string(text) {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("unknown result code %q", string(text))
}

// LoginResult is the normalized outcome handed to a login callback. Optional
// fields are left empty when the provider did not supply them.
type LoginResult struct {
	Provider    Provider   `json:"provider"`
	Code        ResultCode `json:"code"`
	AuthToken   string     `json:"authToken,omitempty"`
	AuthCode    string     `json:"authCode,omitempty"`
	UserToken   string     `json:"userToken,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Photo       string     `json:"photo,omitempty"`
	ID          string     `json:"id,omitempty"`
	Err         error      `json:"-"`
}

// MarshalJSON renders Err as an "error" string.
func (r LoginResult) MarshalJSON() ([]byte, error) {
	type plain LoginResult
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores Err from the "error" string.
func (r *LoginResult) UnmarshalJSON(data []byte) error {
	type plain LoginResult
	var in struct {
		plain
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = LoginResult(in.plain)
	if in.Error != "" {
		r.Err = remoteError(in.Error)
	}
	return nil
}

type remoteError string

func (e remoteError) Error() string { return string(e) }

// Callback receives the result of exactly one login attempt.
type Callback func(result LoginResult)

// ResultHook observes every delivered result before the callback runs.
type ResultHook func(ctx context.Context, result LoginResult)

// ProviderState reports whether a provider was set up by Init.
type ProviderState struct {
	IsInitialized bool `json:"isInitialized"`
}

// InitializationResult is owned by the caller and filled in by Init.
type InitializationResult struct {
	Facebook ProviderState `json:"facebook"`
	Google   ProviderState `json:"google"`
	Twitter  ProviderState `json:"twitter"`
}

// AuthPage is a provider authorization page that has to be shown to the user.
type AuthPage struct {
	Provider Provider `json:"provider"`
	URL      string   `json:"url"`
}

// Presenter shows and hides provider authorization pages on behalf of the host
// application.
type Presenter interface {
	Present(ctx context.Context, page AuthPage) error
	Dismiss(ctx context.Context, page AuthPage)
}

package social

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type fakeFacebook struct {
	mu          sync.Mutex
	loggedOut   int
	behavior    LoginBehavior
	loginCalls  int
	permissions []string
	graphReq    GraphRequest

	loginResult *FacebookLoginResult
	loginErr    error
	// release, when set, blocks LogIn until closed.
	release    chan struct{}
	profile    json.RawMessage
	profileErr error
}

func (f *fakeFacebook) LogOut() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut++
}

func (f *fakeFacebook) SetLoginBehavior(b LoginBehavior) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.behavior = b
}

func (f *fakeFacebook) LogIn(ctx context.Context, permissions []string) (*FacebookLoginResult, error) {
	f.mu.Lock()
	f.loginCalls++
	f.permissions = permissions
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.loginResult, f.loginErr
}

func (f *fakeFacebook) FetchProfile(_ context.Context, req GraphRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphReq = req
	return f.profile, f.profileErr
}

func (f *fakeFacebook) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

type fakeGoogle struct {
	mu                sync.Mutex
	fetchBasicProfile *bool
	scopes            []string
	scopesSet         bool
	serverClientID    *string
	signIns           int

	signIn func(ctx context.Context, d GoogleSignInDelegate)
}

func (g *fakeGoogle) SetShouldFetchBasicProfile(fetch bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchBasicProfile = &fetch
}

func (g *fakeGoogle) SetScopes(scopes []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scopes = scopes
	g.scopesSet = true
}

func (g *fakeGoogle) SetServerClientID(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.serverClientID = &id
}

func (g *fakeGoogle) SignIn(ctx context.Context, d GoogleSignInDelegate) {
	g.mu.Lock()
	g.signIns++
	fn := g.signIn
	g.mu.Unlock()
	if fn != nil {
		fn(ctx, d)
	}
}

type recordingPresenter struct {
	mu        sync.Mutex
	presented []AuthPage
	dismissed []AuthPage
	err       error
}

func (p *recordingPresenter) Present(_ context.Context, page AuthPage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presented = append(p.presented, page)
	return p.err
}

func (p *recordingPresenter) Dismiss(_ context.Context, page AuthPage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissed = append(p.dismissed, page)
}

func collect() (Callback, <-chan LoginResult) {
	ch := make(chan LoginResult, 4)
	return func(r LoginResult) { ch <- r }, ch
}

func waitResult(t *testing.T, ch <-chan LoginResult) LoginResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for login result")
		return LoginResult{}
	}
}

func expectNoResult(t *testing.T, ch <-chan LoginResult) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("unexpected second callback invocation: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func newFacebookAdapter(t *testing.T, fb *fakeFacebook, opts ...Option) *Adapter {
	t.Helper()
	opts = append([]Option{WithFacebookLoginManager(func() (FacebookAuthClient, error) { return fb, nil })}, opts...)
	a := New(Config{Facebook: &FacebookConfig{}}, opts...)
	if res := a.Init(&InitializationResult{}); !res.Facebook.IsInitialized {
		t.Fatalf("facebook not initialized")
	}
	return a
}

func newGoogleAdapter(t *testing.T, g *fakeGoogle, opts ...Option) *Adapter {
	t.Helper()
	opts = append([]Option{WithGoogleSignIn(g)}, opts...)
	a := New(Config{Google: &GoogleConfig{ShouldFetchBasicProfile: true}}, opts...)
	if res := a.Init(&InitializationResult{}); !res.Google.IsInitialized {
		t.Fatalf("google not initialized")
	}
	return a
}

package social

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func signedInUser(serverAuthCode string) *GoogleUser {
	return &GoogleUser{
		UserID:         "1098765",
		ServerAuthCode: serverAuthCode,
		Profile: &GoogleProfile{
			Email:      "grace@example.com",
			Name:       "Grace Hopper",
			GivenName:  "Grace",
			FamilyName: "Hopper",
		},
		Authentication: &GoogleAuthentication{IDToken: "eyJ.id.token", AccessToken: "ya29"},
	}
}

func TestGoogleSignInOutcomes(t *testing.T) {
	signInErr := errors.New("keychain error")
	disconnectErr := errors.New("revoked by user")
	tests := []struct {
		name    string
		signIn  func(ctx context.Context, d GoogleSignInDelegate)
		want    LoginResult
		wantErr error
	}{
		{
			name:   "server auth code preferred",
			signIn: func(_ context.Context, d GoogleSignInDelegate) { d.DidSignIn(signedInUser("4/0Ab"), nil) },
			want: LoginResult{
				Provider:    ProviderGoogle,
				Code:        ResultSuccess,
				AuthCode:    "4/0Ab",
				DisplayName: "Grace Hopper",
				ID:          "1098765",
				UserToken:   "grace@example.com",
			},
		},
		{
			name:   "identity token fallback",
			signIn: func(_ context.Context, d GoogleSignInDelegate) { d.DidSignIn(signedInUser(""), nil) },
			want: LoginResult{
				Provider:    ProviderGoogle,
				Code:        ResultSuccess,
				AuthCode:    "eyJ.id.token",
				DisplayName: "Grace Hopper",
				ID:          "1098765",
				UserToken:   "grace@example.com",
			},
		},
		{
			name:    "sign-in error",
			signIn:  func(_ context.Context, d GoogleSignInDelegate) { d.DidSignIn(nil, signInErr) },
			want:    LoginResult{Provider: ProviderGoogle, Code: ResultFailed},
			wantErr: signInErr,
		},
		{
			name: "user without profile",
			signIn: func(_ context.Context, d GoogleSignInDelegate) {
				u := signedInUser("")
				u.Profile = nil
				d.DidSignIn(u, nil)
			},
			want:    LoginResult{Provider: ProviderGoogle, Code: ResultFailed},
			wantErr: ErrMissingProfile,
		},
		{
			name: "no authentication and no server code",
			signIn: func(_ context.Context, d GoogleSignInDelegate) {
				u := signedInUser("")
				u.Authentication = nil
				d.DidSignIn(u, nil)
			},
			want:    LoginResult{Provider: ProviderGoogle, Code: ResultFailed},
			wantErr: ErrMissingProfile,
		},
		{
			name:   "disconnect without error",
			signIn: func(_ context.Context, d GoogleSignInDelegate) { d.DidDisconnect(nil, nil) },
			want:   LoginResult{Provider: ProviderGoogle, Code: ResultCancelled},
		},
		{
			name:    "disconnect with error",
			signIn:  func(_ context.Context, d GoogleSignInDelegate) { d.DidDisconnect(nil, disconnectErr) },
			want:    LoginResult{Provider: ProviderGoogle, Code: ResultFailed},
			wantErr: disconnectErr,
		},
		{
			name:    "delegate never called",
			signIn:  func(context.Context, GoogleSignInDelegate) {},
			want:    LoginResult{Provider: ProviderGoogle, Code: ResultFailed},
			wantErr: ErrNoSignInResult,
		},
		{
			name: "only the first report counts",
			signIn: func(_ context.Context, d GoogleSignInDelegate) {
				d.DidDisconnect(nil, nil)
				d.DidSignIn(signedInUser("late"), nil)
			},
			want: LoginResult{Provider: ProviderGoogle, Code: ResultCancelled},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newGoogleAdapter(t, &fakeGoogle{signIn: tt.signIn})
			cb, ch := collect()
			a.LoginWithGoogle(context.Background(), cb)
			got := waitResult(t, ch)
			expectNoResult(t, ch)

			if tt.wantErr != nil && !errors.Is(got.Err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, got.Err)
			}
			if tt.wantErr == nil && got.Err != nil {
				t.Fatalf("unexpected error %v", got.Err)
			}
			got.Err = nil
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("unexpected result\n got: %+v\nwant: %+v", got, tt.want)
			}
		})
	}
}

func TestGoogleDelegateForwardsUIRequests(t *testing.T) {
	page := AuthPage{Provider: ProviderGoogle, URL: "https://accounts.example/o/oauth2/auth"}
	presenter := &recordingPresenter{}
	g := &fakeGoogle{signIn: func(ctx context.Context, d GoogleSignInDelegate) {
		if err := d.PresentSignIn(ctx, page); err != nil {
			d.DidSignIn(nil, err)
			return
		}
		d.DismissSignIn(ctx, page)
		d.DidDisconnect(nil, nil)
	}}
	a := newGoogleAdapter(t, g, WithPresenter(presenter))

	cb, ch := collect()
	a.LoginWithGoogle(context.Background(), cb)
	if got := waitResult(t, ch); got.Code != ResultCancelled {
		t.Fatalf("unexpected result %+v", got)
	}

	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	if len(presenter.presented) != 1 || presenter.presented[0] != page {
		t.Fatalf("expected page to be presented once, got %v", presenter.presented)
	}
	if len(presenter.dismissed) != 1 || presenter.dismissed[0] != page {
		t.Fatalf("expected page to be dismissed once, got %v", presenter.dismissed)
	}
}

func TestGoogleWithoutPresenterFails(t *testing.T) {
	g := &fakeGoogle{signIn: func(ctx context.Context, d GoogleSignInDelegate) {
		d.DidSignIn(nil, d.PresentSignIn(ctx, AuthPage{Provider: ProviderGoogle}))
	}}
	a := newGoogleAdapter(t, g)
	cb, ch := collect()
	a.LoginWithGoogle(context.Background(), cb)
	if got := waitResult(t, ch); !errors.Is(got.Err, ErrNoPresenter) {
		t.Fatalf("expected ErrNoPresenter, got %+v", got)
	}
}

func TestGoogleDelegateIsPerCall(t *testing.T) {
	var delegates []GoogleSignInDelegate
	g := &fakeGoogle{signIn: func(_ context.Context, d GoogleSignInDelegate) {
		delegates = append(delegates, d)
		d.DidDisconnect(nil, nil)
	}}
	a := newGoogleAdapter(t, g)
	for i := 0; i < 2; i++ {
		cb, ch := collect()
		a.LoginWithGoogle(context.Background(), cb)
		waitResult(t, ch)
	}
	if len(delegates) != 2 || delegates[0] == delegates[1] {
		t.Fatalf("expected a fresh delegate per call")
	}
}

func TestGoogleConcurrentSignInRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	g := &fakeGoogle{signIn: func(ctx context.Context, d GoogleSignInDelegate) {
		close(started)
		<-release
		d.DidSignIn(signedInUser(""), nil)
	}}
	a := newGoogleAdapter(t, g)

	first, firstCh := collect()
	a.LoginWithGoogle(context.Background(), first)
	<-started

	second, secondCh := collect()
	a.LoginWithGoogle(context.Background(), second)
	if got := waitResult(t, secondCh); !errors.Is(got.Err, ErrLoginInProgress) || got.Provider != ProviderGoogle {
		t.Fatalf("expected in-progress rejection, got %+v", got)
	}

	close(release)
	if got := waitResult(t, firstCh); got.Code != ResultSuccess || got.AuthCode != "eyJ.id.token" {
		t.Fatalf("first sign-in must get its own result, got %+v", got)
	}
}

func TestGoogleNilCallbackSkipsSignIn(t *testing.T) {
	g := &fakeGoogle{}
	a := newGoogleAdapter(t, g)
	a.LoginWithGoogle(context.Background(), nil)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.signIns != 0 {
		t.Fatalf("sign-in must not run without a callback")
	}
}

package social

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

func (a *Adapter) runGoogleSignIn(ctx context.Context, signIn GoogleAuthClient) LoginResult {
	delegate := newSignInDelegate(a, a.presenter)
	signIn.SignIn(ctx, delegate)
	// No-op when the delegate was already called.
	delegate.finish(failed(ErrNoSignInResult))
	return <-delegate.done
}

// signInDelegate belongs to a single LoginWithGoogle call, so a late callback
// can never reach another call's result.
type signInDelegate struct {
	adapter   *Adapter
	presenter Presenter
	once      sync.Once
	done      chan LoginResult
}

func newSignInDelegate(a *Adapter, p Presenter) *signInDelegate {
	return &signInDelegate{
		adapter:   a,
		presenter: p,
		done:      make(chan LoginResult, 1),
	}
}

func (d *signInDelegate) finish(result LoginResult) {
	d.once.Do(func() { d.done <- result })
}

func (d *signInDelegate) DidSignIn(user *GoogleUser, err error) {
	if err != nil {
		d.adapter.logMsg("sign-in failed", tagGoogle, zap.Error(err))
		d.finish(failed(err))
		return
	}

	result, err := googleResult(user)
	if err != nil {
		d.adapter.logMsg("signed-in user unreadable", tagGoogle, zap.Error(err))
		d.finish(failed(err))
		return
	}
	d.adapter.logMsg("signed in", tagGoogle)
	d.finish(result)
}

func (d *signInDelegate) DidDisconnect(_ *GoogleUser, err error) {
	if err != nil {
		d.adapter.logMsg("disconnected with error", tagGoogle, zap.Error(err))
		d.finish(failed(err))
		return
	}
	d.adapter.logMsg("sign-in cancelled", tagGoogle)
	d.finish(LoginResult{Code: ResultCancelled})
}

func (d *signInDelegate) PresentSignIn(ctx context.Context, page AuthPage) error {
	if d.presenter == nil {
		return ErrNoPresenter
	}
	return d.presenter.Present(ctx, page)
}

func (d *signInDelegate) DismissSignIn(ctx context.Context, page AuthPage) {
	if d.presenter != nil {
		d.presenter.Dismiss(ctx, page)
	}
}

// googleResult prefers the server auth code and falls back to the identity
// token, which is only read when no server auth code was issued.
func googleResult(user *GoogleUser) (LoginResult, error) {
	if user == nil || user.Profile == nil {
		return LoginResult{}, ErrMissingProfile
	}
	authCode := user.ServerAuthCode
	if authCode == "" {
		if user.Authentication == nil {
			return LoginResult{}, ErrMissingProfile
		}
		authCode = user.Authentication.IDToken
	}
	return LoginResult{
		Code:        ResultSuccess,
		AuthCode:    authCode,
		DisplayName: user.Profile.Name,
		ID:          user.UserID,
		UserToken:   user.Profile.Email,
	}, nil
}

package social

import "errors"

var (
	// ErrNullResult is reported when the login manager returns neither a
	// result nor an error.
	ErrNullResult = errors.New("Null error") //nolint:staticcheck // message is part of the result contract
	// ErrNoAccessToken is reported when a finished Facebook login carries no token.
	ErrNoAccessToken = errors.New("could not acquire an access token")
	// ErrLoginInProgress rejects a login while another one for the same
	// provider has not delivered its result yet.
	ErrLoginInProgress = errors.New("login already in progress")
	// ErrNotInitialized is reported when a login runs before Init set the
	// provider up.
	ErrNotInitialized = errors.New("provider not initialized")
	// ErrNoSignInResult is reported when SignIn returned without calling the delegate.
	ErrNoSignInResult = errors.New("sign-in finished without a result")
	// ErrMissingProfile is reported when a signed-in Google user lacks the
	// fields the result is built from.
	ErrMissingProfile = errors.New("signed-in user has no profile")
	// ErrNoPresenter is returned to a sign-in that asks for its page to be
	// shown when the host set no Presenter.
	ErrNoPresenter = errors.New("no presenter configured")
	// ErrEmptyGraphResponse is reported when the Graph profile request returned no body.
	ErrEmptyGraphResponse = errors.New("empty graph response")
)

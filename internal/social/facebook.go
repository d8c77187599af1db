package social

import (
	"context"

	"go.uber.org/zap"
)

var (
	facebookReadPermissions = []string{"public_profile", "email"}
	facebookProfileFields   = []string{"id", "about", "birthday", "email", "gender", "name", "first_name", "last_name", "picture"}
)

func (a *Adapter) runFacebookLogin(ctx context.Context, manager FacebookAuthClient) LoginResult {
	res, err := manager.LogIn(ctx, facebookReadPermissions)
	switch {
	case err != nil:
		a.logMsg("login failed", tagFacebook, zap.Error(err))
		return failed(err)
	case res == nil:
		a.logMsg("login returned no result", tagFacebook)
		return failed(ErrNullResult)
	case res.IsCancelled:
		a.logMsg("login cancelled", tagFacebook)
		return LoginResult{Code: ResultCancelled}
	case res.Token == nil || res.Token.TokenString == "":
		a.logMsg("login returned no token", tagFacebook)
		return failed(ErrNoAccessToken)
	}

	a.logMsg("login succeeded, fetching profile", tagFacebook)
	return a.fetchFacebookProfile(ctx, manager, res.Token.TokenString)
}

// fetchFacebookProfile never surfaces a partial profile: any failure to read
// it discards every field and reports ResultException.
func (a *Adapter) fetchFacebookProfile(ctx context.Context, manager FacebookAuthClient, token string) LoginResult {
	raw, err := manager.FetchProfile(ctx, GraphRequest{
		Path:   "me",
		Fields: facebookProfileFields,
		Token:  token,
	})
	var profile *GraphProfile
	if err == nil {
		profile, err = DecodeGraphProfile(raw)
	}
	if err != nil {
		a.logMsg("profile lookup failed", tagFacebook, zap.Error(err))
		return LoginResult{Code: ResultException, Err: err}
	}

	result := LoginResult{
		Code:        ResultSuccess,
		AuthToken:   token,
		ID:          profile.ID,
		UserToken:   profile.Email,
		DisplayName: profile.Name,
		FirstName:   optional(profile.FirstName),
		LastName:    optional(profile.LastName),
	}
	if photo, ok := profile.PhotoURL(); ok {
		result.Photo = photo
	}
	return result
}

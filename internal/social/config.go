package social

// LoginBehavior selects how the Facebook login dialog is shown.
type LoginBehavior string

const (
	LoginBehaviorBrowser LoginBehavior = "browser"
	LoginBehaviorWeb     LoginBehavior = "web"
	LoginBehaviorNative  LoginBehavior = "native"
)

// Config holds the per-provider settings applied by Init. A nil section means
// the provider is not configured and Init skips it.
type Config struct {
	Facebook *FacebookConfig
	Google   *GoogleConfig
}

// FacebookConfig configures the Facebook login manager.
type FacebookConfig struct {
	ClearSession  bool
	LoginBehavior LoginBehavior `validate:"omitempty,oneof=browser web native"`
}

// GoogleConfig configures the shared Google sign-in instance.
type GoogleConfig struct {
	ShouldFetchBasicProfile bool
	Scopes                  []string
	// ServerClientID is only handed to the sign-in instance when
	// IsRequestAuthCode is also set, since it switches sign-in to returning an
	// offline server auth code.
	ServerClientID    string
	IsRequestAuthCode bool
}

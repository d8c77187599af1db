package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dhawalhost/sociallogin/internal/callback"
	"github.com/dhawalhost/sociallogin/internal/config"
	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/dhawalhost/sociallogin/internal/social/facebook"
	"github.com/dhawalhost/sociallogin/internal/social/google"
	"github.com/dhawalhost/sociallogin/pkg/client"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type loginOptions struct {
	*rootOptions
	server    string
	port      int
	timeout   time.Duration
	noBrowser bool
	interval  time.Duration
}

func newLoginCmd(root *rootOptions) *cobra.Command {
	opts := &loginOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:       "login facebook|google",
		Short:     "Run one login and print the result",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(social.ProviderFacebook), string(social.ProviderGoogle)},
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _ := social.ParseProvider(args[0])
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			var (
				result social.LoginResult
				err    error
			)
			if opts.server != "" {
				result, err = opts.remoteLogin(ctx, cmd.ErrOrStderr(), provider)
			} else {
				result, err = opts.localLogin(ctx, cmd.ErrOrStderr(), provider)
			}
			if err != nil {
				return err
			}
			if err := printValue(cmd.OutOrStdout(), opts.output, result); err != nil {
				return err
			}
			if result.Code != social.ResultSuccess {
				return fmt.Errorf("login %s", result.Code)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "", "socialsvc API root, e.g. http://localhost:8080/api/v1")
	flags.IntVar(&opts.port, "port", 8085, "loopback port for provider redirects")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "how long to wait for the user")
	flags.BoolVar(&opts.noBrowser, "no-browser", false, "print the authorization URL instead of opening it")
	flags.DurationVar(&opts.interval, "poll-interval", time.Second, "result polling interval in server mode")
	return cmd
}

func (o *loginOptions) open(stderr io.Writer) func(string) error {
	if o.noBrowser {
		return func(url string) error {
			_, err := fmt.Fprintf(stderr, "Open this URL to continue:\n%s\n", url)
			return err
		}
	}
	return callback.OpenBrowser
}

// localLogin drives the adapter in-process. Provider redirects land on the
// loopback listener, which must match a redirect URI registered with the app.
func (o *loginOptions) localLogin(ctx context.Context, stderr io.Writer, provider social.Provider) (social.LoginResult, error) {
	cfg, err := o.load()
	if err != nil {
		return social.LoginResult{}, err
	}
	log, err := o.logger()
	if err != nil {
		return social.LoginResult{}, err
	}
	defer func() { _ = log.Sync() }()

	broker := callback.NewBroker("", log)
	loopback, err := callback.ListenLoopback(broker, o.port, log)
	if err != nil {
		return social.LoginResult{}, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = loopback.Shutdown(shutdownCtx)
	}()

	presenter := callback.NewPresenterFunc(o.open(stderr), log)
	adapter := newAdapter(cfg, broker, presenter, log)
	providers := adapter.Init(nil)
	if !initialized(*providers, provider) {
		return social.LoginResult{}, fmt.Errorf("%s is not configured", provider)
	}

	done := make(chan social.LoginResult, 1)
	deliver := func(r social.LoginResult) { done <- r }
	switch provider {
	case social.ProviderFacebook:
		adapter.LoginWithFacebook(ctx, deliver)
	case social.ProviderGoogle:
		adapter.LoginWithGoogle(ctx, deliver)
	}

	// The adapter answers even when ctx expires, since the flow observes it.
	return <-done, nil
}

func (o *loginOptions) remoteLogin(ctx context.Context, stderr io.Writer, provider social.Provider) (social.LoginResult, error) {
	c := client.New(client.Config{BaseURL: o.server})
	c.RequestID = uuid.NewString()

	attempt, err := c.StartLogin(ctx, provider)
	if err != nil {
		return social.LoginResult{}, err
	}
	if attempt.Result != nil {
		return *attempt.Result, nil
	}
	if attempt.AuthorizeURL != "" {
		if err := o.open(stderr)(attempt.AuthorizeURL); err != nil {
			return social.LoginResult{}, fmt.Errorf("open browser: %w", err)
		}
	}
	return c.WaitForResult(ctx, attempt.ID, o.interval)
}

func newAdapter(cfg *config.Config, broker *callback.Broker, presenter social.Presenter, log *zap.Logger) *social.Adapter {
	opts := []social.Option{
		social.WithLogger(log),
		social.WithPresenter(presenter),
		social.WithFacebookLoginManager(func() (social.FacebookAuthClient, error) {
			return facebook.NewClient(cfg.FacebookClient(), broker, presenter, facebook.WithLogger(log)), nil
		}),
	}
	if cfg.Google.ClientID != "" {
		opts = append(opts, social.WithGoogleSignIn(google.NewClient(cfg.GoogleClient(), broker, google.WithLogger(log))))
	}
	return social.New(cfg.Social(), opts...)
}

func initialized(providers social.InitializationResult, provider social.Provider) bool {
	switch provider {
	case social.ProviderFacebook:
		return providers.Facebook.IsInitialized
	case social.ProviderGoogle:
		return providers.Google.IsInitialized
	default:
		return false
	}
}

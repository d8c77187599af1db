package main

import (
	"github.com/dhawalhost/sociallogin/internal/callback"
	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/dhawalhost/sociallogin/pkg/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProvidersCmd(root *rootOptions) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show which providers are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var providers social.InitializationResult
			if server != "" {
				var err error
				providers, err = client.New(client.Config{BaseURL: server}).Providers(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				cfg, err := root.load()
				if err != nil {
					return err
				}
				providers = *newAdapter(cfg, callback.NewBroker("", zap.NewNop()), nil, zap.NewNop()).Init(nil)
			}
			return printValue(cmd.OutOrStdout(), root.output, providers)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "socialsvc API root; local config is used when empty")
	return cmd
}

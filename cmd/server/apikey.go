package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"version-gate/internal/auth"
	"version-gate/internal/storage"
)

func newAPIKeyCommand(opts *rootOptions) *cobra.Command {
	var appID, appName string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an SDK API key, creating the app first when --name is given",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (appID == "") == (appName == "") {
				return errors.New("exactly one of --app or --name is required")
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := storage.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if appName != "" {
				if appID, err = store.CreateApp(ctx, appName); err != nil {
					return err
				}
				log.Info().Str("app_id", appID).Str("name", appName).Msg("app created")
			}

			key, err := auth.Generate()
			if err != nil {
				return err
			}
			if err := store.CreateAPIKey(ctx, key.ID, appID, key.Hash); err != nil {
				return err
			}
			log.Info().Str("app_id", appID).Str("key_id", key.ID).Msg("api key created")
			// The secret is shown once and never stored in clear.
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key.Token())
			return err
		},
	}
	create.Flags().StringVar(&appID, "app", "", "existing app id")
	create.Flags().StringVar(&appName, "name", "", "name of a new app")

	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage SDK API keys",
	}
	cmd.AddCommand(create)
	return cmd
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"version-gate/internal/app/server"
	"version-gate/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "version-gate",
		Short:         "Client version gating service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.v = config.New(opts.configFile)
			if err := opts.v.BindPFlag("server.log_level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
				return err
			}
			return opts.v.BindPFlag("server.log_format", cmd.Root().PersistentFlags().Lookup("log-format"))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default configs/application.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json or console")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newCheckCommand(),
		newAPIKeyCommand(opts),
	)
	return cmd
}

// load reads config and installs the global logger.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.v)
	if err != nil {
		return config.Config{}, err
	}
	config.SetupLogging(cfg.Server.LogLevel, cfg.Server.LogFormat)
	return cfg, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP version check API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return server.Run(cmd.Context(), cfg)
		},
	}
}

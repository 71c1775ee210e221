package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/songzhibin97/mailregistry/internal/registry/server"
	"github.com/songzhibin97/mailregistry/pkg/log"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, cfg, server.WithVersion(Version), server.WithLogger(log.Component("server")))
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

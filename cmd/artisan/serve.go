package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func serveCmd(boot bootFunc) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the application over HTTP",
		Long: `Boot the application and listen on APP_PORT (or --port) until
interrupted, then shut down gracefully.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				if err := os.Setenv("APP_PORT", port); err != nil {
					return err
				}
			}
			application, err := boot()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Serve(ctx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (overrides APP_PORT)")
	return cmd
}

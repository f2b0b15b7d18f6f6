// Command artisan serves the sample application and inspects its routes.
//
//	artisan serve --env .env
//	artisan route:list --format yaml
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-laravel-kernel/app"
	foundation "github.com/km-arc/go-laravel-kernel/framework/app"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "artisan",
		Short:         "Run and inspect the application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file to load")

	boot := func() (*foundation.Application, error) {
		return app.Bootstrap(nil, envFile)
	}

	rootCmd.AddCommand(
		serveCmd(boot),
		routeListCmd(boot),
		versionCmd(),
	)
	return rootCmd
}

type bootFunc func() (*foundation.Application, error)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the framework version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), foundation.Version)
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

func routeListCmd(boot bootFunc) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "route:list",
		Short: "List all registered routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := boot()
			if err != nil {
				return err
			}
			application.Kernel().Bootstrap()

			routes, err := application.Router().List()
			if err != nil {
				return err
			}
			return writeRoutes(cmd.OutOrStdout(), routes, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	return cmd
}

func writeRoutes(w io.Writer, routes []routing.RouteSummary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(routes); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "METHOD\tURI\tNAME\tACTION\tMIDDLEWARE")
		for _, r := range routes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				strings.Join(r.Methods, "|"), r.URI, r.Name, r.Action, strings.Join(r.Middleware, ","))
		}
		return tw.Flush()
	}
	return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
}

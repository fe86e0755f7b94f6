package main

import (
	"github.com/spf13/cobra"

	"github.com/minjunminji/ubcxlsxtoics/internal/refresh"
	"github.com/minjunminji/ubcxlsxtoics/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP conversion service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			conf.Listen = listen
		}
		conv, err := newConverter(cmd.Context(), false)
		if err != nil {
			return err
		}
		return web.StartServer(cmd.Context(), conf, conv)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerates watch.output from watch.input on a schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		conv, err := newConverter(cmd.Context(), false)
		if err != nil {
			return err
		}
		r, err := refresh.New(conf.Watch, conv)
		if err != nil {
			return err
		}
		return r.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)

	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
}

package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/vadimbarashkov/shortlink/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	return app.Run(cmd.Context(), cfg, app.NewLogger(cfg, os.Stdout))
}

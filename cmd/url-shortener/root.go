package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vadimbarashkov/shortlink/internal/app"
	"github.com/vadimbarashkov/shortlink/internal/config"
)

const configEnv = "CONFIG_PATH"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "url-shortener",
		Short:         "Shorten URLs and redirect short codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		fmt.Sprintf("path to the YAML config file (defaults to $%s)", configEnv))

	cmd.AddCommand(
		newServeCmd(opts),
		newShortenCmd(opts),
		newListCmd(opts),
	)

	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	return config.Load(path)
}

// openApp builds the application for the one-shot subcommands, logging to w.
func (o *rootOptions) openApp(cmd *cobra.Command, w io.Writer) (*app.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}

	return app.New(cmd.Context(), cfg, app.NewLogger(cfg, w))
}

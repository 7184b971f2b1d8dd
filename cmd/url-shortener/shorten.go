package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShortenCmd(opts *rootOptions) *cobra.Command {
	var originalURL, customCode string

	cmd := &cobra.Command{
		Use:   "shorten",
		Short: "Shorten a URL without starting the server",
		Example: `  url-shortener shorten --url https://example.com
  url-shortener shorten --url https://example.com --code my-link`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.URLUseCase.ShortenURL(cmd.Context(), originalURL, customCode)
			if err != nil {
				return err
			}

			msg := "URL shortened successfully"
			if res.Existing {
				msg = "URL already exists"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, msg)
			fmt.Fprintf(out, "Code: %s\n", res.ShortCode)
			fmt.Fprintf(out, "Short URL: %s\n", res.ShortURL)

			return nil
		},
	}

	cmd.Flags().StringVar(&originalURL, "url", "", "URL to shorten")
	cmd.Flags().StringVar(&customCode, "code", "", "custom short code (3-20 letters, digits, - or _)")
	cmd.MarkFlagRequired("url")

	return cmd
}

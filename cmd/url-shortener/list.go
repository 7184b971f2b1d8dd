package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

const listTimeLayout = "2006-01-02 15:04:05"

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List shortened URLs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			urls, err := a.URLUseCase.ListURLs(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tCLICKS\tCREATED\tSHORT URL\tORIGINAL URL")
			for _, u := range urls {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
					u.ShortCode, u.Clicks, u.CreatedAt.UTC().Format(listTimeLayout), u.ShortURL, u.OriginalURL)
			}

			return tw.Flush()
		},
	}
}

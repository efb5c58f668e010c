package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOptionsCmd() *cobra.Command {
	var method, endpoint, param, value string
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Fetch a dynamic option list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := newClient(cmd)
			if err != nil {
				return err
			}
			opts, err := cl.FetchOptions(cmd.Context(), method, endpoint, param, value)
			if err != nil {
				return err
			}
			for _, o := range opts {
				fmt.Fprintln(cmd.OutOrStdout(), o)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "GET", "request method")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "options endpoint, e.g. /api/states")
	cmd.Flags().StringVar(&param, "param", "", "query parameter carrying the dependency value")
	cmd.Flags().StringVar(&value, "value", "", "dependency value")
	mustFlag(cmd, "endpoint")
	mustFlag(cmd, "param")
	return cmd
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/formportal/pkg/client"
	"github.com/faciam-dev/formportal/pkg/config"
)

// mustFlag marks a flag as required and panics on error.
func mustFlag(cmd *cobra.Command, name string) {
	cobra.CheckErr(cmd.MarkFlagRequired(name))
}

// newClient builds a backend client from the resolved profile.
func newClient(cmd *cobra.Command) (client.Client, error) {
	r, err := config.Resolve(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(r.APIURL, client.WithTimeout(r.Timeout)), nil
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, err := cmd.Root().PersistentFlags().GetString("output")
	if err != nil {
		return "", err
	}
	switch format {
	case "table", "json", "yaml":
		return format, nil
	}
	return "", fmt.Errorf("unsupported output %q", format)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

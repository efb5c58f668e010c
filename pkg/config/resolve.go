package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// DefaultTimeout bounds backend calls when neither flag nor profile sets one.
const DefaultTimeout = 10 * time.Second

type Resolved struct {
	APIURL  string
	Timeout time.Duration
	Profile string
}

// Resolve picks the backend URL from the --api-url flag, then PORTAL_API_URL,
// then the selected profile.
func Resolve(cmd *cobra.Command) (Resolved, error) {
	flagURL, _ := cmd.Root().PersistentFlags().GetString("api-url")
	flagTimeout, _ := cmd.Root().PersistentFlags().GetDuration("timeout")

	envURL := os.Getenv("PORTAL_API_URL")

	cfg, err := Load()
	if err != nil {
		return Resolved{}, err
	}
	prof := cfg.Active
	if p, _ := cmd.Root().PersistentFlags().GetString("profile"); p != "" {
		prof = p
	}
	cp := cfg.Profiles[prof]

	url := firstNonEmpty(flagURL, envURL, cp.APIURL)
	if url == "" {
		return Resolved{}, fmt.Errorf("API URL not set (flag/env/config)")
	}

	timeout := DefaultTimeout
	if cp.Timeout != "" {
		d, err := time.ParseDuration(cp.Timeout)
		if err != nil {
			return Resolved{}, fmt.Errorf("profile %s timeout: %w", prof, err)
		}
		timeout = d
	}
	if flagTimeout > 0 {
		timeout = flagTimeout
	}

	return Resolved{
		APIURL:  strings.TrimRight(url, "/"),
		Timeout: timeout,
		Profile: prof,
	}, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

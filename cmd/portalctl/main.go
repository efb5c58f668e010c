package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/formportal/internal/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "portalctl",
		Short:        "Inspect insurance forms and applications from a terminal",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("api-url", "", "Insurance backend base URL")
	root.PersistentFlags().String("profile", "", "Profile name in config (overrides active)")
	root.PersistentFlags().String("output", "table", "Output format (table|json|yaml)")
	root.PersistentFlags().Duration("timeout", time.Duration(0), "Backend request timeout (overrides profile)")

	root.AddCommand(newFormsCmd())
	root.AddCommand(newSubmissionsCmd())
	root.AddCommand(newOptionsCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newGenDocsCmd())
	return root
}

func main() {
	logger.Set(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

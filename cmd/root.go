// Package cmd defines and implements the CLI commands for the
// extractor executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/clipvault/extractor/internal/app"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can
// replace it with a mock factory.
var newApp = func(ctx context.Context) (*app.App, error) {
	return app.NewApp(ctx, cfgFile)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extractor",
		Short: "Adaptive web content extraction service for ClipVault.",
		Long: `extractor powers ClipVault link previews and reader mode. It
combines a cheap HTTP fast path with a shared headless browser for
pages that render their metadata client side, and serves remote
images through an SSRF-safe proxy.`,

		// Build and inject the application after flags are parsed but
		// before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; environment variables always apply)")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// resolveApp retrieves the injected App from the command context.
func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

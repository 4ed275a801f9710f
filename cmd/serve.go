package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"switchboard/internal/app"
)

// serveTransport overrides server.transport of the configuration.
var serveTransport string

// serveTenant names the tenant of the single stdio session.
var serveTenant string

// serveCmd defines the serve command, the main command of switchboard. It
// starts the MCP server and builds every session's tools from the bindings
// of the session's tenant.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the switchboard MCP server",
	Long: `Starts the switchboard MCP server.

With the streamable-http transport (default) every client names its tenant in
the tenant header (X-Tenant-ID unless configured otherwise). Sessions without
a tenant are rejected.

With the stdio transport the server handles a single session on standard
input and output for the tenant given by --tenant or server.stdioTenant.

Configuration:
  switchboard loads config.yaml from --config-path, or from
  $HOME/.config/switchboard when the flag is not set. Bindings live in the
  configured storage backend and sensitive configuration is opened with the
  age identity named in encryption.identityFile or encryption.identityEnv.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Override the configured transport (streamable-http or stdio)")
	serveCmd.Flags().StringVar(&serveTenant, "tenant", "", "Tenant of the stdio session")
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(debug, configPath)
	cfg.Transport = serveTransport
	cfg.StdioTenant = serveTenant

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(ctx)
}

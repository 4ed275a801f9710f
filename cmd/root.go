package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"switchboard/internal/api"
	"switchboard/internal/config"
	"switchboard/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfigError indicates the configuration failed validation.
	ExitCodeConfigError = 2
	// ExitCodeNotFound indicates a binding or implementation does not exist.
	ExitCodeNotFound = 3
)

// configPath and debug are the persistent flags shared by every subcommand.
var (
	configPath string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Serve tenant-configured capabilities as MCP tools",
	Long: `switchboard exposes built-in capabilities (calendar scheduling, webhook
notifications) as MCP tools. Every tenant binds the capabilities it wants,
with its own configuration and encrypted credentials, and each MCP session
only sees the tools of its tenant.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelWarn
		if debug {
			level = logging.LevelDebug
		}
		logging.InitForCLI(level, cmd.ErrOrStderr())
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "switchboard version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var validationErrs config.ValidationErrors
	if errors.As(err, &validationErrs) {
		return ExitCodeConfigError
	}

	if api.IsNotFound(err) {
		return ExitCodeNotFound
	}

	return ExitCodeError
}

// loadConfig loads the configuration --config-path points at.
func loadConfig() (config.SwitchboardConfig, error) {
	path := configPath
	if path == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			return config.SwitchboardConfig{}, err
		}
		path = defaultPath
	}
	return config.LoadConfig(path)
}

// init adds the subcommands that are not registered by their own files and
// the persistent flags.
func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default $HOME/.config/switchboard)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"switchboard/internal/config"
	"switchboard/pkg/logging"
)

// Application represents the main application structure that bootstraps and
// runs the switchboard server.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load configuration, initialize logging, build services
//  2. Execution phase: serve MCP sessions until the context ends or a signal arrives
//
// Example usage:
//
//	cfg := app.NewConfig(false, "")
//	application, err := app.NewApplication(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration, sets up logging and initializes
// every service. Configuration is read from cfg.ConfigPath, or from the
// default user configuration directory when it is empty. A pre-populated
// cfg.SwitchboardConfig skips loading.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	if cfg.SwitchboardConfig == nil {
		configPath := cfg.ConfigPath
		if configPath == "" {
			defaultPath, err := config.GetDefaultConfigPath()
			if err != nil {
				return nil, fmt.Errorf("failed to determine configuration directory: %w", err)
			}
			configPath = defaultPath
		}

		switchboardCfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load switchboard configuration from path %s: %w", configPath, err)
		}
		cfg.ConfigPath = configPath
		cfg.SwitchboardConfig = &switchboardCfg
	}

	cfg.applyOverrides()
	if err := cfg.SwitchboardConfig.Validate(); err != nil {
		return nil, err
	}

	initLogging(cfg, os.Stderr)
	logging.Info("Bootstrap", "Loaded configuration from %s", cfg.ConfigPath)

	services, err := InitializeServices(ctx, cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// initLogging configures the process logger. Logs always go to output; the
// stdio transport owns stdout.
func initLogging(cfg *Config, output io.Writer) {
	level := logging.ParseLevel(cfg.SwitchboardConfig.Logging.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.InitWithFormat(level, cfg.SwitchboardConfig.Logging.Format, output)
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves sessions until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down and releases the binding store.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.services)
}

package app

import (
	"switchboard/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// ConfigPath is the configuration directory. Empty means the default
	// user configuration directory.
	ConfigPath string

	// Transport overrides the configured server transport when set.
	Transport string

	// StdioTenant overrides the configured stdio tenant when set.
	StdioTenant string

	// Loaded configuration. Set by NewApplication when nil.
	SwitchboardConfig *config.SwitchboardConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}

// applyOverrides copies command line overrides onto the loaded configuration.
func (c *Config) applyOverrides() {
	if c.Transport != "" {
		c.SwitchboardConfig.Server.Transport = c.Transport
	}
	if c.StdioTenant != "" {
		c.SwitchboardConfig.Server.StdioTenant = c.StdioTenant
	}
}

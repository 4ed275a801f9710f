package config

import "time"

const (
	// DefaultIdentityFile is the age identity file inside the config directory.
	DefaultIdentityFile = "identity.txt"

	// DefaultIdentityEnv names the environment variable that may hold the
	// age identity instead of the file.
	DefaultIdentityEnv = "SWITCHBOARD_IDENTITY"

	// DefaultBindingsDir is the file backend directory inside the config
	// directory.
	DefaultBindingsDir = "bindings"
)

// GetDefaultConfig returns the default configuration for switchboard.
func GetDefaultConfig() SwitchboardConfig {
	return SwitchboardConfig{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8090,
			Transport:      MCPTransportStreamableHTTP,
			EndpointPath:   "/mcp",
			TenantHeader:   "X-Tenant-ID",
			SessionTimeout: 30 * time.Minute,
		},
		Storage: StorageConfig{
			Backend: StorageBackendFile,
			Path:    DefaultBindingsDir,
			Mongo: MongoConfig{
				URIEnv:     "SWITCHBOARD_MONGO_URI",
				Database:   "switchboard",
				Collection: "bindings",
			},
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				PasswordEnv: "SWITCHBOARD_REDIS_PASSWORD",
				Prefix:      "switchboard:",
			},
		},
		Encryption: EncryptionConfig{
			IdentityFile: DefaultIdentityFile,
			IdentityEnv:  DefaultIdentityEnv,
		},
		Limits: LimitsConfig{
			MaxResponseBytes:  64 * 1024,
			MaxRecords:        100,
			MaxFieldBytes:     8 * 1024,
			InvocationTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		ResolveConcurrency: 4,
	}
}

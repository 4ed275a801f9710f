package config

import "time"

// SwitchboardConfig is the top-level configuration structure for switchboard.
type SwitchboardConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Limits     LimitsConfig     `yaml:"limits"`
	Logging    LoggingConfig    `yaml:"logging"`

	// ResolveConcurrency bounds how many bindings are resolved in parallel
	// when a session starts.
	ResolveConcurrency int `yaml:"resolveConcurrency,omitempty"`
}

const (
	// MCPTransportStreamableHTTP is the streamable HTTP transport.
	MCPTransportStreamableHTTP = "streamable-http"
	// MCPTransportStdio is the standard I/O transport.
	MCPTransportStdio = "stdio"
)

// Storage backends.
const (
	StorageBackendFile  = "file"
	StorageBackendMongo = "mongo"
	StorageBackendRedis = "redis"
)

// ServerConfig defines the MCP server clients connect to.
type ServerConfig struct {
	Host           string        `yaml:"host,omitempty"`           // Host to bind to (default: localhost)
	Port           int           `yaml:"port,omitempty"`           // Port for streamable-http (default: 8090)
	Transport      string        `yaml:"transport,omitempty"`      // Transport to use (default: streamable-http)
	EndpointPath   string        `yaml:"endpointPath,omitempty"`   // HTTP path of the MCP endpoint (default: /mcp)
	TenantHeader   string        `yaml:"tenantHeader,omitempty"`   // Header carrying the tenant ID (default: X-Tenant-ID)
	StdioTenant    string        `yaml:"stdioTenant,omitempty"`    // Tenant of the stdio session
	SessionTimeout time.Duration `yaml:"sessionTimeout,omitempty"` // Idle time before a session's adapters are dropped
	MaxSessions    int           `yaml:"maxSessions,omitempty"`    // Concurrent session limit
}

// StorageConfig selects where tenant bindings are persisted.
type StorageConfig struct {
	Backend string      `yaml:"backend,omitempty"` // file, mongo or redis (default: file)
	Path    string      `yaml:"path,omitempty"`    // Directory of the file backend, relative to the config directory
	Mongo   MongoConfig `yaml:"mongo,omitempty"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// MongoConfig configures the mongo binding store.
type MongoConfig struct {
	URI        string `yaml:"uri,omitempty"`
	URIEnv     string `yaml:"uriEnv,omitempty"` // Environment variable overriding URI
	Database   string `yaml:"database,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// RedisConfig configures the redis binding store.
type RedisConfig struct {
	Addr        string `yaml:"addr,omitempty"`
	PasswordEnv string `yaml:"passwordEnv,omitempty"` // Environment variable holding the password
	DB          int    `yaml:"db,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
}

// EncryptionConfig locates the age identity that opens sensitive configuration.
type EncryptionConfig struct {
	IdentityFile string `yaml:"identityFile,omitempty"` // Relative to the config directory
	IdentityEnv  string `yaml:"identityEnv,omitempty"`  // Environment variable holding the identity, takes precedence
}

// LimitsConfig bounds adapter invocations and their responses. Zero disables
// a limit.
type LimitsConfig struct {
	MaxResponseBytes  int           `yaml:"maxResponseBytes,omitempty"`
	MaxRecords        int           `yaml:"maxRecords,omitempty"`
	MaxFieldBytes     int           `yaml:"maxFieldBytes,omitempty"`
	InvocationTimeout time.Duration `yaml:"invocationTimeout,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn or error
	Format string `yaml:"format,omitempty"` // text or json
}

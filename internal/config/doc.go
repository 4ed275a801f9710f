// Package config provides configuration management for switchboard.
//
// Configuration is loaded from config.yaml in a single directory, by default
// ~/.config/switchboard, on top of GetDefaultConfig. A missing file is not an
// error. Relative paths (the file storage directory and the age identity file)
// are resolved against the configuration directory.
//
// # Example
//
//	server:
//	  transport: streamable-http
//	  port: 8090
//	  tenantHeader: X-Tenant-ID
//	storage:
//	  backend: mongo
//	  mongo:
//	    uriEnv: SWITCHBOARD_MONGO_URI
//	    database: switchboard
//	encryption:
//	  identityFile: identity.txt
//	limits:
//	  maxResponseBytes: 65536
//	  maxRecords: 100
//	  invocationTimeout: 30s
//	logging:
//	  level: info
//	  format: json
//
// Secrets never live in config.yaml: the mongo URI and the redis password may
// be read from environment variables, and the age identity from a file or
// the SWITCHBOARD_IDENTITY environment variable.
package config

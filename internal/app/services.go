package app

import (
	"context"
	"fmt"

	"switchboard/internal/aggregator"
	"switchboard/internal/binding"
	"switchboard/internal/binding/filestore"
	"switchboard/internal/binding/mongo"
	"switchboard/internal/binding/redis"
	"switchboard/internal/bridge"
	"switchboard/internal/capability"
	"switchboard/internal/config"
	"switchboard/internal/sealed"
	"switchboard/internal/tools"
	"switchboard/pkg/logging"
)

// Services holds every component the server needs, wired in dependency order:
//  1. Capability registry, discovered once from the built-in catalog
//  2. Binding store for the configured backend
//  3. Sealer opening sensitive configuration
//  4. Resolver combining the three
//  5. MCP server and the bridge building per-session tools on it
type Services struct {
	Registry *capability.Registry
	Store    binding.Store
	Sealer   *sealed.Sealer
	Resolver *binding.Resolver
	Server   *aggregator.Server
	Bridge   *bridge.Bridge
}

// InitializeServices builds all services from the loaded configuration.
func InitializeServices(ctx context.Context, cfg *Config) (*Services, error) {
	sc := cfg.SwitchboardConfig

	registry := NewRegistry()
	logging.Info("Bootstrap", "Discovered %d capability implementations: %v", len(registry.Names()), registry.Names())

	sealer, err := OpenSealer(sc.Encryption)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, sc.Storage)
	if err != nil {
		return nil, err
	}

	resolver := binding.NewResolver(store, registry, sealer)

	srv := aggregator.NewServer(aggregator.AggregatorConfig{
		Host:           sc.Server.Host,
		Port:           sc.Server.Port,
		Transport:      sc.Server.Transport,
		EndpointPath:   sc.Server.EndpointPath,
		TenantHeader:   sc.Server.TenantHeader,
		StdioTenant:    sc.Server.StdioTenant,
		SessionTimeout: sc.Server.SessionTimeout,
		MaxSessions:    sc.Server.MaxSessions,
	})

	b := bridge.New(registry, resolver, srv, bridge.Config{
		Limits: bridge.Limits{
			MaxResponseBytes:  sc.Limits.MaxResponseBytes,
			MaxRecords:        sc.Limits.MaxRecords,
			MaxFieldBytes:     sc.Limits.MaxFieldBytes,
			InvocationTimeout: sc.Limits.InvocationTimeout,
		},
		Concurrency: sc.ResolveConcurrency,
	})

	return &Services{
		Registry: registry,
		Store:    store,
		Sealer:   sealer,
		Resolver: resolver,
		Server:   srv,
		Bridge:   b,
	}, nil
}

// NewRegistry returns a registry populated with the built-in capabilities.
func NewRegistry() *capability.Registry {
	registry := capability.NewRegistry()
	registry.Discover(tools.Catalog())
	return registry
}

// OpenSealer loads the age identity the configuration points at.
func OpenSealer(cfg config.EncryptionConfig) (*sealed.Sealer, error) {
	identity, err := sealed.LoadIdentity(cfg.IdentityFile, cfg.IdentityEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load encryption identity: %w", err)
	}
	return sealed.New(identity), nil
}

// OpenStore connects the configured binding store backend.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (binding.Store, error) {
	switch cfg.Backend {
	case config.StorageBackendFile, "":
		logging.Info("Bootstrap", "Using file binding store at %s", cfg.Path)
		return filestore.New(cfg.Path), nil
	case config.StorageBackendMongo:
		logging.Info("Bootstrap", "Using mongo binding store %s.%s", cfg.Mongo.Database, cfg.Mongo.Collection)
		store, err := mongo.Connect(ctx, cfg.MongoURI(), cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mongo binding store: %w", err)
		}
		return store, nil
	case config.StorageBackendRedis:
		logging.Info("Bootstrap", "Using redis binding store at %s", cfg.Redis.Addr)
		store, err := redis.Connect(ctx, cfg.Redis.Addr, cfg.RedisPassword(), cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis binding store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Close releases the binding store.
func (s *Services) Close(ctx context.Context) error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Close(ctx)
}

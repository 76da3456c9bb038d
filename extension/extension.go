// Package extension provides the Forge extension adapter for Tally.
//
// It implements the forge.Extension interface to integrate Tally
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tally" or "tally" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/tally"
	"github.com/xraph/tally/asset"
	lockredis "github.com/xraph/tally/lock/redis"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/store/mongo"
	"github.com/xraph/tally/store/postgres"
	"github.com/xraph/tally/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tally"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Value ledger for community content economies"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Tally as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tally.Engine
	store      store.Store
	groveDB    *grove.DB
	redis      goredis.UniversalClient
	engineOpts []tally.Option
}

// New creates a new Tally Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *tally.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := e.buildStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	e.engine = tally.New(e.store, e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*tally.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tally: extension not initialized")
	}

	if !e.config.DisableStart {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil && !e.config.DisableStart {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tally: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildStore picks a backend for the configured driver. A grove-backed
// driver needs the grove.DB passed with WithGroveDB.
func (e *Extension) buildStore() (store.Store, error) {
	driver := e.config.StoreDriver
	if driver == "" || driver == DriverMemory {
		return memory.New(), nil
	}
	if e.groveDB == nil {
		return nil, fmt.Errorf("tally: store driver %q requires a grove database", driver)
	}

	switch driver {
	case DriverPostgres:
		return postgres.New(e.groveDB), nil
	case DriverSQLite:
		return sqlite.New(e.groveDB), nil
	case DriverMongo:
		return mongo.New(e.groveDB), nil
	default:
		return nil, fmt.Errorf("tally: unknown store driver %q", driver)
	}
}

// buildEngineOpts constructs tally.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []tally.Option {
	opts := make([]tally.Option, 0, len(e.engineOpts)+6)

	opts = append(opts,
		tally.WithPollInterval(e.config.PollInterval),
		tally.WithTotalSupply(e.config.TotalSupply),
		tally.WithStoreTimeout(e.config.StoreTimeout),
		tally.WithBootstrap(!e.config.DisableBootstrap),
	)

	if len(e.config.Rewards) > 0 {
		rewards := make(map[asset.Type]int64, len(e.config.Rewards))
		for k, v := range e.config.Rewards {
			rewards[asset.Type(k)] = v
		}
		opts = append(opts, tally.WithRewards(rewards))
	}

	client := e.redis
	if client == nil && e.config.RedisAddr != "" {
		client = goredis.NewClient(&goredis.Options{Addr: e.config.RedisAddr})
		e.redis = client
	}
	if client != nil {
		opts = append(opts, tally.WithLocker(lockredis.New(client, lockredis.WithPrefix(e.config.LockPrefix))))
	}

	// Pass-through options win over config.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tally: configuration is required but not found in config files; " +
				"ensure 'extensions.tally' or 'tally' key exists in your config")
		}

		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tally: configuration loaded",
		forge.F("disable_start", e.config.DisableStart),
		forge.F("disable_bootstrap", e.config.DisableBootstrap),
		forge.F("poll_interval", e.config.PollInterval),
		forge.F("total_supply", e.config.TotalSupply),
		forge.F("store_timeout", e.config.StoreTimeout),
		forge.F("store_driver", e.config.StoreDriver),
		forge.F("redis", e.config.RedisAddr != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.tally", "tally"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("tally: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("tally: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.TotalSupply == 0 {
		cfg.TotalSupply = defaults.TotalSupply
	}
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = defaults.StoreTimeout
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.LockPrefix == "" {
		cfg.LockPrefix = defaults.LockPrefix
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableStart {
		yamlConfig.DisableStart = true
	}
	if programmaticConfig.DisableBootstrap {
		yamlConfig.DisableBootstrap = true
	}

	if yamlConfig.PollInterval == 0 {
		yamlConfig.PollInterval = programmaticConfig.PollInterval
	}
	if yamlConfig.TotalSupply == 0 {
		yamlConfig.TotalSupply = programmaticConfig.TotalSupply
	}
	if yamlConfig.StoreTimeout == 0 {
		yamlConfig.StoreTimeout = programmaticConfig.StoreTimeout
	}
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}
	if yamlConfig.RedisAddr == "" {
		yamlConfig.RedisAddr = programmaticConfig.RedisAddr
	}
	if yamlConfig.LockPrefix == "" {
		yamlConfig.LockPrefix = programmaticConfig.LockPrefix
	}
	if len(yamlConfig.Rewards) == 0 {
		yamlConfig.Rewards = programmaticConfig.Rewards
	}

	return e.mergeWithDefaults(yamlConfig)
}

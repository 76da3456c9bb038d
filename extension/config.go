package extension

import "time"

// Store drivers understood by the extension.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the Tally extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tally" or "tally" keys).
type Config struct {
	// DisableStart prevents migrating the store and starting the
	// settlement worker when the extension starts.
	DisableStart bool `json:"disable_start" mapstructure:"disable_start" yaml:"disable_start"`

	// DisableBootstrap stops Start from running genesis on an empty store.
	DisableBootstrap bool `json:"disable_bootstrap" mapstructure:"disable_bootstrap" yaml:"disable_bootstrap"`

	// PollInterval is how often the settlement worker scans contracts
	// (default: 1s).
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval" yaml:"poll_interval"`

	// TotalSupply is the amount minted into the pool at genesis
	// (default: 1,000,000,000).
	TotalSupply int64 `json:"total_supply" mapstructure:"total_supply" yaml:"total_supply"`

	// StoreTimeout bounds every store call made by the engine (default: 5s).
	StoreTimeout time.Duration `json:"store_timeout" mapstructure:"store_timeout" yaml:"store_timeout"`

	// Rewards overrides the value minted per created asset, keyed by asset
	// type ("post", "comment", "expression", "board").
	Rewards map[string]int64 `json:"rewards" mapstructure:"rewards" yaml:"rewards"`

	// StoreDriver selects the backend built on the grove.DB passed with
	// WithGroveDB: "postgres", "sqlite" or "mongo". Without a grove.DB the
	// memory store is used (default: "memory").
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// RedisAddr enables the Redis pool lock for multi-instance deployments.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// LockPrefix namespaces Redis lock keys (default: "tally:lock:").
	LockPrefix string `json:"lock_prefix" mapstructure:"lock_prefix" yaml:"lock_prefix"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		TotalSupply:  1_000_000_000,
		StoreTimeout: 5 * time.Second,
		StoreDriver:  DriverMemory,
		LockPrefix:   "tally:lock:",
	}
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps configuration keys to the CLI flags that may override them.
var flagKeys = map[string]string{
	"engine.max_recursion_depth":            "max-depth",
	"engine.max_ids_query_count":            "max-ids",
	"engine.aggregate_bucket_size":          "bucket-size",
	"engine.past_events_disable_partitions": "disable-partitions",
	"engine.refresh_workers":                "workers",
	"engine.definitions_dir":                "definitions",
	"database.url":                          "database",
}

// LoadConfig loads configuration from file using viper.
// Environment > config file > defaults precedence.
func LoadConfig(configPath string) (*EngineConfig, error) {
	return Load(configPath, nil)
}

// Load is LoadConfig with CLI flag overrides.
// CLI flags > environment > config file > defaults precedence. Flags that
// were not set on the command line do not override anything.
func Load(configPath string, flags *pflag.FlagSet) (*EngineConfig, error) {
	v := viper.New()

	def := DefaultEngineConfig()
	v.SetDefault("engine.max_recursion_depth", def.MaxRecursionDepth)
	v.SetDefault("engine.max_ids_query_count", def.MaxIDsQueryCount)
	v.SetDefault("engine.aggregate_bucket_size", def.AggregateBucketSize)
	v.SetDefault("engine.past_events_disable_partitions", def.PastEventsDisablePartitions)
	v.SetDefault("engine.refresh_workers", def.RefreshWorkers)
	v.SetDefault("engine.definitions_dir", def.DefinitionsDir)
	v.SetDefault("engine.slow_access_threshold", def.SlowAccessThreshold.String())
	v.SetDefault("database.url", def.DatabaseURL)

	// Bind environment variables with CE_ prefix
	v.SetEnvPrefix("CE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := validateNoSecretsInConfig(configPath); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &EngineConfig{
		MaxRecursionDepth:           v.GetInt("engine.max_recursion_depth"),
		MaxIDsQueryCount:            v.GetInt("engine.max_ids_query_count"),
		AggregateBucketSize:         v.GetInt("engine.aggregate_bucket_size"),
		PastEventsDisablePartitions: v.GetBool("engine.past_events_disable_partitions"),
		RefreshWorkers:              v.GetInt("engine.refresh_workers"),
		DefinitionsDir:              v.GetString("engine.definitions_dir"),
		SlowAccessThreshold:         v.GetDuration("engine.slow_access_threshold"),
		DatabaseURL:                 v.GetString("database.url"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateNoSecretsInConfig enforces environment-only credentials. The file
// is read on its own so an environment override cannot mask a password
// written into it.
func validateNoSecretsInConfig(configPath string) error {
	file := viper.New()
	file.SetConfigFile(configPath)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if hasPassword(file.GetString("database.url")) {
		return fmt.Errorf("database credentials not allowed in config files (use CE_DATABASE_URL environment variable)")
	}
	return nil
}

// Package config provides configuration management for condengine.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/solatis/condengine/internal/types"
)

// EngineConfig holds the tunables of the resolver, evaluators, query
// builders and the SQL item index.
type EngineConfig struct {
	MaxRecursionDepth           int
	MaxIDsQueryCount            int
	AggregateBucketSize         int
	PastEventsDisablePartitions bool
	RefreshWorkers              int
	DefinitionsDir              string
	SlowAccessThreshold         time.Duration
	DatabaseURL                 string
}

// DefaultEngineConfig returns configuration with default values.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxRecursionDepth:   types.MaxRecursionDepth,
		MaxIDsQueryCount:    types.MaxIDsQueryCount,
		AggregateBucketSize: types.AggregateBucketSize,
		RefreshWorkers:      4,
		SlowAccessThreshold: 5 * time.Millisecond,
	}
}

// Validate checks that every limit is positive.
func (c *EngineConfig) Validate() error {
	if c.MaxRecursionDepth <= 0 {
		return fmt.Errorf("max_recursion_depth must be positive, got %d", c.MaxRecursionDepth)
	}
	if c.MaxIDsQueryCount <= 0 {
		return fmt.Errorf("max_ids_query_count must be positive, got %d", c.MaxIDsQueryCount)
	}
	if c.AggregateBucketSize <= 0 {
		return fmt.Errorf("aggregate_bucket_size must be positive, got %d", c.AggregateBucketSize)
	}
	if c.RefreshWorkers <= 0 {
		return fmt.Errorf("refresh_workers must be positive, got %d", c.RefreshWorkers)
	}
	if c.SlowAccessThreshold < 0 {
		return fmt.Errorf("slow_access_threshold must not be negative, got %v", c.SlowAccessThreshold)
	}
	return nil
}

// hasPassword reports whether a database URL embeds a password.
// DSNs that are not URLs (sqlite file paths) never do.
func hasPassword(dsn string) bool {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}

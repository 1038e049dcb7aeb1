// Package config loads WorkerConfig from process environment via
// spf13/viper (spec.md §6.3's "process/global variables on worker
// startup"), the same env-binding idiom the teacher uses for daemon
// configuration, rather than hand-rolled os.Getenv parsing.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/canonical/sqliteweb/internal/coordinator"
)

const (
	keyDBName            = "db_name"
	keyFollowerTimeoutMs = "follower_timeout_ms"
	keyQueryTimeoutMs    = "query_timeout_ms"
	keyDBOnly            = "db_only"

	defaultFollowerTimeoutMs = 5000
	defaultQueryTimeoutMs    = 30000
)

// WorkerConfig is spec.md §3's WorkerConfig plus the §6.3 DB-only mode
// flag, already normalized: non-finite/negative timeouts become
// coordinator.InfiniteTimeout, everything else is a non-negative duration.
type WorkerConfig struct {
	DBName            string
	FollowerTimeoutMs time.Duration
	QueryTimeoutMs    time.Duration
	DBOnly            bool
}

// Load reads __DB_NAME, __FOLLOWER_TIMEOUT_MS, __QUERY_TIMEOUT_MS and
// __DB_ONLY from the environment (spec.md §6.3), applying defaults and the
// non-finite/negative -> infinite normalization rule.
func Load() (WorkerConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, keyDBName, "__DB_NAME")
	bindEnv(v, keyFollowerTimeoutMs, "__FOLLOWER_TIMEOUT_MS")
	bindEnv(v, keyQueryTimeoutMs, "__QUERY_TIMEOUT_MS")
	bindEnv(v, keyDBOnly, "__DB_ONLY")

	v.SetDefault(keyFollowerTimeoutMs, defaultFollowerTimeoutMs)
	v.SetDefault(keyQueryTimeoutMs, defaultQueryTimeoutMs)
	v.SetDefault(keyDBOnly, false)

	dbName := strings.TrimSpace(v.GetString(keyDBName))
	if dbName == "" {
		return WorkerConfig{}, fmt.Errorf("config: __DB_NAME is required and must be non-empty")
	}

	return WorkerConfig{
		DBName:            dbName,
		FollowerTimeoutMs: normalizeTimeout(v.GetFloat64(keyFollowerTimeoutMs)),
		QueryTimeoutMs:    normalizeTimeout(v.GetFloat64(keyQueryTimeoutMs)),
		DBOnly:            v.GetBool(keyDBOnly),
	}, nil
}

func bindEnv(v *viper.Viper, key, env string) {
	_ = v.BindEnv(key, env)
}

// normalizeTimeout applies spec.md §4.1's rule: a non-finite or negative
// configured timeout is infinite; 0 is a literal, immediate timeout; any
// other finite non-negative value is that many milliseconds.
func normalizeTimeout(ms float64) time.Duration {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return coordinator.InfiniteTimeout
	}

	return time.Duration(ms) * time.Millisecond
}

// ToCoordinatorConfig projects WorkerConfig onto coordinator.Config.
func (c WorkerConfig) ToCoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		DBName:            c.DBName,
		FollowerTimeoutMs: c.FollowerTimeoutMs,
		QueryTimeoutMs:    c.QueryTimeoutMs,
	}
}

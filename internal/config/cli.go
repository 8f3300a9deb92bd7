package config

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BindFlags registers every option from §6's table on cmd and binds it to
// viper under the same key, so every option is readable from flag or
// TELESCOPE_-prefixed environment variable (cobra/viper wiring follows
// the teacher's cmd/root.go init() pattern).
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.String("postgres", "", "libpq connection string (required)")
	flags.Duration("postgres-connection-timeout", 3*time.Second, "pool connect timeout")
	flags.Int("postgres-pool-size", 10, "max postgres connections")
	flags.String("postgres-schema", "public", "postgres schema name")
	flags.String("listen-http", "localhost:8000", "probes/metrics listen address")
	flags.String("coin", "bitcoin", "coin name")
	flags.String("chain", "main", "chain (main, test)")
	flags.String("bitcoind", "", "node JSON-RPC URL with basic-auth creds (required)")
	flags.String("bitcoind-rest", "", "node REST URL, optional")
	flags.String("sync-segment", "0..latest", "sync range, start..end where end is a height or \"latest\"")
	flags.String("log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")

	v.BindPFlag("postgres", flags.Lookup("postgres"))
	v.BindPFlag("postgres-connection-timeout", flags.Lookup("postgres-connection-timeout"))
	v.BindPFlag("postgres-pool-size", flags.Lookup("postgres-pool-size"))
	v.BindPFlag("postgres-schema", flags.Lookup("postgres-schema"))
	v.BindPFlag("listen-http", flags.Lookup("listen-http"))
	v.BindPFlag("coin", flags.Lookup("coin"))
	v.BindPFlag("chain", flags.Lookup("chain"))
	v.BindPFlag("bitcoind", flags.Lookup("bitcoind"))
	v.BindPFlag("bitcoind-rest", flags.Lookup("bitcoind-rest"))
	v.BindPFlag("sync-segment", flags.Lookup("sync-segment"))
	v.BindPFlag("log-level", flags.Lookup("log-level"))
}

// Load reads viper's bound values (flags, falling back to
// TELESCOPE_-prefixed env vars) and validates them into a Config.
func Load(v *viper.Viper) (Config, error) {
	r := raw{
		Postgres:                  v.GetString("postgres"),
		PostgresConnectionTimeout: v.GetDuration("postgres-connection-timeout").String(),
		PostgresPoolSize:          v.GetInt("postgres-pool-size"),
		PostgresSchema:            v.GetString("postgres-schema"),
		ListenHTTP:                v.GetString("listen-http"),
		Coin:                      v.GetString("coin"),
		Chain:                     v.GetString("chain"),
		Bitcoind:                  v.GetString("bitcoind"),
		BitcoindREST:              v.GetString("bitcoind-rest"),
		SyncSegment:               v.GetString("sync-segment"),
		LogLevel:                  v.GetString("log-level"),
	}
	return r.validate()
}

// NewViper constructs a viper instance bound to TELESCOPE_-prefixed
// environment variables, with "-" replaced by "_" in option names (the
// teacher's cmd/root.go SetEnvKeyReplacer convention).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

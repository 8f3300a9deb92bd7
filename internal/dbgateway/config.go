package dbgateway

import (
	"regexp"
	"time"

	"github.com/fanatid/telescope/internal/errs"
)

// Config holds the gateway's construction-time configuration, validated by
// NewConfig before anything touches the network.
type Config struct {
	ConnectionString  string
	PoolSize          int
	ConnectionTimeout time.Duration
	Schema            string
	Coin              string
	Chain             string
	SyncSegment       bool // true iff the configured sync range is not 0..latest
}

var schemaIdentifierRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewConfig validates raw fields into a Config, per §4.C's constraints:
// pool size > 0, schema identifier at most 63 bytes and not prefixed pg_.
func NewConfig(connString string, poolSize int, connTimeout time.Duration, schema, coin, chain string, syncSegment bool) (Config, error) {
	if poolSize <= 0 {
		return Config{}, errs.New(errs.KindConfiguration, "postgres pool size must be > 0, got %d", poolSize)
	}
	if connTimeout <= 0 {
		return Config{}, errs.New(errs.KindConfiguration, "postgres connection timeout must be > 0")
	}
	if len(schema) > 63 {
		return Config{}, errs.New(errs.KindConfiguration, "schema identifier %q exceeds 63 bytes", schema)
	}
	if !schemaIdentifierRE.MatchString(schema) {
		return Config{}, errs.New(errs.KindConfiguration, "schema identifier %q is not a valid identifier", schema)
	}
	if len(schema) >= 3 && schema[:3] == "pg_" {
		return Config{}, errs.New(errs.KindConfiguration, "schema identifier %q must not start with pg_", schema)
	}
	return Config{
		ConnectionString:  connString,
		PoolSize:          poolSize,
		ConnectionTimeout: connTimeout,
		Schema:            schema,
		Coin:              coin,
		Chain:             chain,
		SyncSegment:       syncSegment,
	}, nil
}

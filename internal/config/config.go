// Package config is the external interface surface (§6): the cobra+viper
// CLI/environment binding, validated into a typed Config at parse time —
// before any network or database I/O, per the Configuration error kind's
// "exit code 1 before any I/O" rule.
package config

import (
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fanatid/telescope/internal/dbgateway"
	"github.com/fanatid/telescope/internal/errs"
)

// EnvPrefix is the environment variable prefix every option is also
// readable under, e.g. TELESCOPE_POSTGRES.
const EnvPrefix = "TELESCOPE"

var validCoins = map[string]bool{"bitcoin": true}
var validChains = map[string]bool{"main": true, "test": true}

// Config is the fully validated external configuration for one run of the
// `indexer bitcoin` or `client bitcoin` subcommand.
type Config struct {
	Postgres                  string
	PostgresConnectionTimeout time.Duration
	PostgresPoolSize          int
	PostgresSchema            string
	ListenHTTP                string
	Coin                      string
	Chain                     string
	Bitcoind                  string
	BitcoindREST              string
	SyncSegment               SyncSegment
	LogLevel                  logrus.Level
}

// raw mirrors the viper-bound flag values before validation.
type raw struct {
	Postgres                  string
	PostgresConnectionTimeout string
	PostgresPoolSize          int
	PostgresSchema            string
	ListenHTTP                string
	Coin                      string
	Chain                     string
	Bitcoind                  string
	BitcoindREST              string
	SyncSegment               string
	LogLevel                  string
}

// validate turns raw flag/env values into a Config, failing fast on the
// first invalid field so the process never reaches any I/O with a bad
// configuration.
func (r raw) validate() (Config, error) {
	if r.Postgres == "" {
		return Config{}, errs.New(errs.KindConfiguration, "--postgres is required")
	}
	if _, err := url.Parse(r.Postgres); err != nil {
		return Config{}, errs.Wrap(errs.KindConfiguration, err, "parsing --postgres")
	}

	connTimeout, err := time.ParseDuration(r.PostgresConnectionTimeout)
	if err != nil {
		return Config{}, errs.Wrap(errs.KindConfiguration, err, "parsing --postgres-connection-timeout")
	}

	if !validCoins[r.Coin] {
		return Config{}, errs.New(errs.KindConfiguration, "--coin %q is not recognized", r.Coin)
	}
	if !validChains[r.Chain] {
		return Config{}, errs.New(errs.KindConfiguration, "--chain %q is not recognized", r.Chain)
	}

	if r.Bitcoind == "" {
		return Config{}, errs.New(errs.KindConfiguration, "--bitcoind is required")
	}
	if err := validateNodeURL(r.Bitcoind); err != nil {
		return Config{}, errs.Wrap(errs.KindConfiguration, err, "parsing --bitcoind")
	}
	if r.BitcoindREST != "" {
		if err := validateNodeURL(r.BitcoindREST); err != nil {
			return Config{}, errs.Wrap(errs.KindConfiguration, err, "parsing --bitcoind-rest")
		}
	}

	segment, err := ParseSyncSegment(r.SyncSegment)
	if err != nil {
		return Config{}, err
	}

	level, err := logrus.ParseLevel(r.LogLevel)
	if err != nil {
		return Config{}, errs.Wrap(errs.KindConfiguration, err, "parsing --log-level")
	}

	// validate pool size / schema against the same rules dbgateway.NewConfig
	// enforces, so a bad value is rejected here rather than after the
	// process has already opened a socket to postgres.
	if _, err := dbgateway.NewConfig(r.Postgres, r.PostgresPoolSize, connTimeout, r.PostgresSchema, r.Coin, r.Chain, !segment.IsFullRange()); err != nil {
		return Config{}, err
	}

	return Config{
		Postgres:                  r.Postgres,
		PostgresConnectionTimeout: connTimeout,
		PostgresPoolSize:          r.PostgresPoolSize,
		PostgresSchema:            r.PostgresSchema,
		ListenHTTP:                r.ListenHTTP,
		Coin:                      r.Coin,
		Chain:                     r.Chain,
		Bitcoind:                  r.Bitcoind,
		BitcoindREST:              r.BitcoindREST,
		SyncSegment:               segment,
		LogLevel:                  level,
	}, nil
}

func validateNodeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errs.New(errs.KindConfiguration, "url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errs.New(errs.KindConfiguration, "url is missing a host")
	}
	return nil
}

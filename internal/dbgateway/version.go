package dbgateway

import (
	"context"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/fanatid/telescope/internal/errs"
)

var minPostgresVersion = mustVersion("12.0.0")
var maxPostgresVersion = mustVersion("13.0.0")

func mustVersion(s string) *semver.Version {
	v, err := semver.NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// checkPostgresVersion runs "selectVersion" and enforces the 12.* range.
// server_version from PostgreSQL can be single-dot ("12.3") or occasionally
// just a major number on some distributions; both are normalized to a full
// three-component version before the range check.
func (g *Gateway) checkPostgresVersion(ctx context.Context) error {
	var raw string
	if err := g.pool.QueryRow(ctx, g.queries.mustQuery("bootstrap", "selectVersion")).Scan(&raw); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "reading server_version")
	}

	normalized := normalizePostgresVersion(raw)
	v, err := semver.NewVersion(normalized)
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, err, "parsing postgres version %q", raw)
	}
	if v.LessThan(minPostgresVersion) || !v.LessThan(maxPostgresVersion) {
		return errs.New(errs.KindConfiguration, "unsupported postgres version %s, require 12.*", v)
	}
	return nil
}

// normalizePostgresVersion takes the leading dot-separated numeric prefix of
// a server_version string (which may carry a trailing " (Ubuntu ...)" or
// similar suffix) and pads it to three components.
func normalizePostgresVersion(raw string) string {
	field := strings.Fields(raw)
	s := raw
	if len(field) > 0 {
		s = field[0]
	}
	parts := strings.Split(s, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return strings.Join(parts[:3], ".")
}

package dbgateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePostgresVersion(t *testing.T) {
	require.Equal(t, "12.3.0", normalizePostgresVersion("12.3"))
	require.Equal(t, "12.3.1", normalizePostgresVersion("12.3.1"))
	require.Equal(t, "12.0.0", normalizePostgresVersion("12 (Ubuntu 12-1.pgdg20.04+1)"))
}

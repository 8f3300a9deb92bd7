package dbgateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigRejectsZeroPoolSize(t *testing.T) {
	_, err := NewConfig("postgres://localhost/x", 0, time.Second, "telescope", "bitcoin", "main", false)
	require.Error(t, err)
}

func TestNewConfigRejectsPgPrefixedSchema(t *testing.T) {
	_, err := NewConfig("postgres://localhost/x", 4, time.Second, "pg_telescope", "bitcoin", "main", false)
	require.Error(t, err)
}

func TestNewConfigRejectsOverlongSchema(t *testing.T) {
	long := ""
	for i := 0; i < 64; i++ {
		long += "a"
	}
	_, err := NewConfig("postgres://localhost/x", 4, time.Second, long, "bitcoin", "main", false)
	require.Error(t, err)
}

func TestNewConfigAccepts(t *testing.T) {
	cfg, err := NewConfig("postgres://localhost/x", 4, time.Second, "telescope", "bitcoin", "main", false)
	require.NoError(t, err)
	require.Equal(t, "telescope", cfg.Schema)
}

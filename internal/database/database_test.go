package database

import (
	"context"
	"testing"
	"time"

	"bwitty-orders/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDatabaseConfig(port int) config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:            "127.0.0.1",
		Port:            port,
		User:            "postgres",
		Password:        "postgres",
		Database:        "bwitty",
		MaxConnections:  12,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}
}

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(testDatabaseConfig(5432))
	require.NoError(t, err)

	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, 5*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, "UTC", pc.ConnConfig.RuntimeParams["timezone"])
	assert.Equal(t, "bwitty-orders", pc.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "bwitty", pc.ConnConfig.Database)
}

func TestNewPool_GivesUpWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	pool, err := NewPool(ctx, testDatabaseConfig(1), zerolog.Nop())

	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Less(t, time.Since(start), 5*time.Second)
}

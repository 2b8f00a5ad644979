package pkg

import (
	"context"
	"testing"

	"github.com/ask4sham/letsrevise-attempts/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDatabase_SQLite(t *testing.T) {
	db, err := InitDatabase(&config.Config{
		DatabaseDriver: config.DriverSQLite,
		DatabaseURL:    "file:pkg_init?mode=memory&cache=shared",
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.NoError(t, sqlDB.PingContext(context.Background()))
}

func TestInitDatabase_RejectsMemoryDriver(t *testing.T) {
	_, err := InitDatabase(&config.Config{DatabaseDriver: config.DriverMemory})
	assert.Error(t, err)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), &config.Config{RedisURL: "not a url"})
	assert.Error(t, err)
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/order-intake/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_PORT", "APP_ENV", "LOG_LEVEL", "STORE_DRIVER", "TX_TIMEOUT",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"DB_MAX_CONNS", "DB_MIN_CONNS", "DB_MAX_CONN_LIFETIME", "DB_RUN_MIGRATIONS",
		"KAFKA_BROKERS", "KAFKA_TOPIC_ORDER_STATUS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_MemoryDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Store.TxTimeout)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, int32(2), cfg.Postgres.MinConns)
	assert.True(t, cfg.Postgres.RunMigrations)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "orders.status", cfg.Kafka.OrderStatusTopic)
}

func TestLoad_PostgresRequiresConnection(t *testing.T) {
	clearEnv(t)

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST is required")
}

func TestLoad_FromDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables already present, even empty ones.
	for _, key := range []string{"DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME", "KAFKA_BROKERS", "TX_TIMEOUT"} {
		require.NoError(t, os.Unsetenv(key))
	}
	t.Cleanup(func() {
		for _, key := range []string{"DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME", "KAFKA_BROKERS", "TX_TIMEOUT"} {
			_ = os.Unsetenv(key)
		}
	})

	path := filepath.Join(t.TempDir(), ".env")
	content := "DB_HOST=localhost\nDB_USER=intake\nDB_PASSWORD=secret\nDB_NAME=intake\n" +
		"KAFKA_BROKERS=kafka-1:9092, kafka-2:9092\nTX_TIMEOUT=2s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "5432", cfg.Postgres.Port)
	assert.Equal(t, 2*time.Second, cfg.Store.TxTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown driver",
			env:     map[string]string{"STORE_DRIVER": "sqlite"},
			wantErr: "STORE_DRIVER",
		},
		{
			name:    "bad timeout",
			env:     map[string]string{"STORE_DRIVER": "memory", "TX_TIMEOUT": "soon"},
			wantErr: "TX_TIMEOUT must be a duration",
		},
		{
			name:    "bad max conns",
			env:     map[string]string{"STORE_DRIVER": "memory", "DB_MAX_CONNS": "many"},
			wantErr: "DB_MAX_CONNS must be an integer",
		},
		{
			name:    "min above max",
			env:     map[string]string{"STORE_DRIVER": "memory", "DB_MAX_CONNS": "2", "DB_MIN_CONNS": "5"},
			wantErr: "exceeds DB_MAX_CONNS",
		},
		{
			name:    "bad migrations flag",
			env:     map[string]string{"STORE_DRIVER": "memory", "DB_RUN_MIGRATIONS": "maybe"},
			wantErr: "DB_RUN_MIGRATIONS must be a boolean",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

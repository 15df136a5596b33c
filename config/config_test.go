package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "clover", cfg.AppName)
	assert.Equal(t, "+01:00", cfg.MatchingDefaultUTCOffset)
	assert.Equal(t, "+49", cfg.MatchingDefaultPhoneCode)
	assert.Equal(t, "db/pg", cfg.DatabaseMigrationFolderPath)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, 30*time.Second, cfg.BitrixTimeout)
	assert.Equal(t, 6379, cfg.RedisPort)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoad_TypedValues(t *testing.T) {
	t.Setenv("BITRIX_TIMEOUT", "45s")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("DB_MIGRATION_VERSION", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.BitrixTimeout)
	assert.Equal(t, 6380, cfg.RedisPort)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, 3, cfg.DatabaseMigrationVersion)
}

func TestLoad_MalformedValue(t *testing.T) {
	t.Setenv("BITRIX_TIMEOUT", "half a minute")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_EnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("MATCHING_DEFAULT_UTC_OFFSET=-05:30\nKAFKA_BROKERS=a:9092,b:9092\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("MATCHING_DEFAULT_UTC_OFFSET")
		os.Unsetenv("KAFKA_BROKERS")
	})

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "-05:30", cfg.MatchingDefaultUTCOffset)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
}

func TestValidate(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("MATCHING_DEFAULT_UTC_OFFSET", "Berlin")
	t.Setenv("EUROPACE_API_URL", "api.europace.de")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_ISSUER_URL")
	assert.Contains(t, err.Error(), "MATCHING_DEFAULT_UTC_OFFSET")
	assert.Contains(t, err.Error(), "EUROPACE_API_URL")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := Config{
		DatabaseHost:     "db",
		DatabasePort:     "5432",
		DatabaseUserName: "clover",
		DatabasePassword: "p@ss",
		DatabaseName:     "clover",
		DatabaseSSLMode:  "disable",
	}
	assert.Equal(t, "postgres://clover:p%40ss@db:5432/clover?sslmode=disable", cfg.DatabaseDSN())
}

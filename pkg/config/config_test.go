package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.App.Storage)
	assert.Equal(t, "test", cfg.SIFEN.Environment)
	assert.Equal(t, 3, cfg.SIFEN.MaxAttempts)
	assert.Equal(t, time.Second, cfg.SIFEN.BackoffBase)
	assert.Equal(t, time.Hour, cfg.SIFEN.DescriptionTTL)
	assert.Equal(t, 10*time.Second, cfg.SIFEN.DescriptionTimeout)
	assert.Equal(t, time.Minute, cfg.SIFEN.FallbackTTL)
	assert.True(t, cfg.SIFEN.SigningEnabled)
	assert.Equal(t, 25, cfg.DB.MaxConns)
	assert.Empty(t, cfg.Auth.Operators)
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("APP_STORAGE", "MEMORY")
	v.Set("SIFEN_ENV", "prod")
	v.Set("SIFEN_MAX_ATTEMPTS", "5")
	v.Set("SIFEN_BACKOFF_BASE_MS", "250")
	v.Set("SIFEN_SIGNING_ENABLED", "false")
	v.Set("AUTH_OPERATORS", "ana:operador:$2a$10$abc, root:admin:$2a$10$def")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.App.Storage)
	assert.Equal(t, "prod", cfg.SIFEN.Environment)
	assert.Equal(t, 5, cfg.SIFEN.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.SIFEN.BackoffBase)
	assert.False(t, cfg.SIFEN.SigningEnabled)
	require.Len(t, cfg.Auth.Operators, 2)
	assert.Equal(t, OperatorCredential{Username: "root", Role: "admin", PasswordHash: "$2a$10$def"}, cfg.Auth.Operators[1])
}

func TestFromViper_Invalidos(t *testing.T) {
	for key, value := range map[string]string{
		"APP_STORAGE":        "sqlite",
		"SIFEN_ENV":          "staging",
		"SIFEN_MAX_ATTEMPTS": "0",
		"AUTH_OPERATORS":     "solo-usuario",
	} {
		t.Run(key, func(t *testing.T) {
			v := viper.New()
			v.Set(key, value)
			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_ConnectionString(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "sifen", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/sifen?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}

package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ROWSTORE_DRIVER", "memory")
	t.Setenv("AUTH_TOKENS", "budi:$2a$04$abc,sari:$2a$04$def")
	t.Setenv("AUTH_APPROVERS", "sari")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.RowStoreDriver)
	require.Equal(t, 10*time.Second, cfg.RowStoreTimeout)
	require.Equal(t, "Asia/Jakarta", cfg.Location().String())
	require.Equal(t, map[string]string{"budi": "$2a$04$abc", "sari": "$2a$04$def"}, cfg.AuthTokens)
	require.Equal(t, []string{"sari"}, cfg.AuthApprovers)
	require.Equal(t, "0 2 * * *", cfg.AuditCron)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("ROWSTORE_DRIVER", "sqlite")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "ROWSTORE_DRIVER")

	t.Setenv("ROWSTORE_DRIVER", "memory")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "APP_TIMEZONE")

	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_TOKENS", "")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "AUTH_TOKENS")
}

func TestLocationFallsBackToUTC(t *testing.T) {
	var cfg *Config
	require.Equal(t, time.UTC, cfg.Location())
	require.Equal(t, time.UTC, (&Config{AppTimezone: "Nowhere/Else"}).Location())
}

func TestInTestModeFollowsEnvironment(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}

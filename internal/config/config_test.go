package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"ROTA_PORT", "ROTA_DB_PATH", "ROTA_LOG_LEVEL", "ROTA_LOG_FORMAT", "ROTA_TIMEZONE",
	"ROTA_VAPID_PUBLIC_KEY", "ROTA_VAPID_PRIVATE_KEY", "ROTA_VAPID_SUBSCRIBER",
	"ROTA_FIREBASE_CREDENTIALS", "ROTA_DEV_AUTH",
	"ROTA_SWEEP_SECRET", "ROTA_SWEEP_HOUR", "ROTA_SWEEP_INTERNAL",
	"ROTA_BACKUP_DIR", "ROTA_BACKUP_PASSPHRASE", "ROTA_BACKUP_KEEP",
	"ROTA_BACKUP_S3_ENDPOINT", "ROTA_BACKUP_S3_BUCKET", "ROTA_BACKUP_S3_REGION",
	"ROTA_BACKUP_S3_ACCESS_KEY", "ROTA_BACKUP_S3_SECRET_KEY",
}

// clearEnv blanks every ROTA_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "rota.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Equal(t, "mailto:noreply@rota.local", cfg.VAPIDSubscriber)
	assert.False(t, cfg.DevAuth)
	assert.Equal(t, 9, cfg.SweepHour)
	assert.True(t, cfg.SweepInternal)
	assert.Empty(t, cfg.SweepSecret)
	assert.Equal(t, "backups", cfg.Backup.Dir)
	assert.Equal(t, 7, cfg.Backup.Keep)
	assert.Equal(t, "auto", cfg.Backup.S3Region)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROTA_PORT", "9090")
	t.Setenv("ROTA_DB_PATH", "/data/rota.db")
	t.Setenv("ROTA_TIMEZONE", "Europe/Berlin")
	t.Setenv("ROTA_DEV_AUTH", "true")
	t.Setenv("ROTA_SWEEP_HOUR", "7")
	t.Setenv("ROTA_SWEEP_INTERNAL", "false")
	t.Setenv("ROTA_SWEEP_SECRET", "s3cret")
	t.Setenv("ROTA_VAPID_PUBLIC_KEY", "pub")
	t.Setenv("ROTA_VAPID_PRIVATE_KEY", "priv")

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/data/rota.db", cfg.DBPath)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.True(t, cfg.DevAuth)
	assert.Equal(t, 7, cfg.SweepHour)
	assert.False(t, cfg.SweepInternal)
	assert.Equal(t, "s3cret", cfg.SweepSecret)
	assert.Equal(t, "pub", cfg.VAPIDPublicKey)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"ROTA_PORT", "http"},
		{"ROTA_TIMEZONE", "Mars/Olympus_Mons"},
		{"ROTA_SWEEP_HOUR", "24"},
		{"ROTA_SWEEP_HOUR", "-1"},
		{"ROTA_SWEEP_HOUR", "nine"},
		{"ROTA_DEV_AUTH", "sometimes"},
		{"ROTA_SWEEP_INTERNAL", "maybe"},
		{"ROTA_VAPID_PUBLIC_KEY", "only-half"},
		{"ROTA_SWEEP_SECRET", strings.Repeat("x", 73)},
		{"ROTA_BACKUP_KEEP", "0"},
		{"ROTA_BACKUP_KEEP", "all"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := fromEnv()
			assert.Error(t, err)
		})
	}
}

func TestValidateServe(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateServe())

	cfg.DevAuth = true
	assert.NoError(t, cfg.ValidateServe())

	cfg = &Config{FirebaseCredentials: "/etc/rota/sa.json"}
	assert.NoError(t, cfg.ValidateServe())
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("ROTA_DB_PATH")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ROTA_DB_PATH=from-dotenv.db\nROTA_PORT=7070\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("ROTA_PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.DBPath)
	assert.Equal(t, "6060", cfg.Port, "environment wins over .env")
}

func TestLoadWithoutDotEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	_, err := Load()
	assert.NoError(t, err)
}

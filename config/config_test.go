package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFloors(t *testing.T) {
	cfg := &Config{
		Autotrade: AutotradeConfig{
			PollInterval:          time.Second,
			SyncInterval:          5 * time.Second,
			DefaultAmount:         0,
			SyncMaxCodes:          -1,
			PurgeExpiredAfterDays: -3,
		},
	}
	cfg.applyFloors()

	assert.Equal(t, MinPollInterval, cfg.Autotrade.PollInterval)
	assert.Equal(t, MinSyncInterval, cfg.Autotrade.SyncInterval)
	assert.Equal(t, 1, cfg.Autotrade.DefaultAmount)
	assert.Equal(t, 0, cfg.Autotrade.SyncMaxCodes)
	assert.Equal(t, 0, cfg.Autotrade.PurgeExpiredAfterDays)
}

func TestLoadFromEnvDurations(t *testing.T) {
	t.Setenv("AUTOTRADE_POLL_INTERVAL", "45")
	t.Setenv("AUTOTRADE_SYNC_INTERVAL", "2m")

	cfg := LoadFromEnv()
	assert.Equal(t, 45*time.Second, cfg.Autotrade.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Autotrade.SyncInterval)
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, isPlaceholder("${WEBHOOK_URL}"))
	assert.True(t, isPlaceholder("  ${X}  "))
	assert.False(t, isPlaceholder("https://relay.example.com/order"))
	assert.False(t, isPlaceholder(""))
}

func TestFillFromInfoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		"webhook_url: https://relay.example.com/order\npassword: hunter2\nkis_number: 3\n",
	), 0o600))

	cfg := &Config{Autotrade: AutotradeConfig{
		InfoPath:   path,
		WebhookURL: "${WEBHOOK_URL}",
		Password:   "${PASSWORD}",
		KISNumber:  "1", // explicit env value must not be overwritten
	}}
	cfg.fillFromInfoFile()

	assert.Equal(t, "https://relay.example.com/order", cfg.Autotrade.WebhookURL)
	assert.Equal(t, "hunter2", cfg.Autotrade.Password)
	assert.Equal(t, "1", cfg.Autotrade.KISNumber)
	assert.True(t, cfg.CredentialsResolved())
}

func TestFillFromInfoFileEmptyWebhook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		"webhook_url: https://relay.example.com/order\n",
	), 0o600))

	// An operator keeping the URL only in the info file leaves the env
	// value empty, not a placeholder.
	cfg := &Config{Autotrade: AutotradeConfig{
		InfoPath:   path,
		WebhookURL: "",
		Password:   "pw",
		KISNumber:  "1",
	}}
	cfg.fillFromInfoFile()

	assert.Equal(t, "https://relay.example.com/order", cfg.Autotrade.WebhookURL)
	assert.True(t, cfg.CredentialsResolved())
}

func TestLoadFromEnvConservativeDefaults(t *testing.T) {
	t.Setenv("AUTOTRADE_GENERATE_SELL_QUEUE", "")

	cfg := LoadFromEnv()
	assert.False(t, cfg.Autotrade.GenerateSellQueue)
	assert.False(t, cfg.Autotrade.SendEnabled)
}

func TestCredentialsResolvedRejectsPlaceholders(t *testing.T) {
	cfg := &Config{Autotrade: AutotradeConfig{
		WebhookURL: "${WEBHOOK_URL}",
		Password:   "pw",
	}}
	assert.False(t, cfg.CredentialsResolved())

	cfg.Autotrade.WebhookURL = ""
	assert.False(t, cfg.CredentialsResolved())
}

func TestLoadInfoFile(t *testing.T) {
	t.Run("equals separator and noise lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "info.txt")
		require.NoError(t, os.WriteFile(path, []byte(
			"# relay settings\nWEBHOOK_URL = https://r.example.com/hook\nsomething_else: 42\nPassword=pw\n",
		), 0o600))

		info, err := LoadInfoFile(path)
		require.NoError(t, err)
		assert.Equal(t, "https://r.example.com/hook", info.WebhookURL)
		assert.Equal(t, "pw", info.Password)
		assert.Equal(t, "", info.KISNumber)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadInfoFile(filepath.Join(t.TempDir(), "absent"))
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := LoadInfoFile("")
		assert.Error(t, err)
	})
}

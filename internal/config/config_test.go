package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"tadka/internal/config"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err)
	return path
}

func TestLoadConfig_JSON(t *testing.T) {
	json := `{
		"timezone": "Asia/Kolkata",
		"http": {"addr": ":9090"},
		"database": {"driver": "sqlite", "dsn": "tadka.db"},
		"scheduler": {"enabled": true, "check_frequency_minutes": 10}
	}`
	path := writeTempConfig(t, "config.json", json)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	require.True(t, cfg.Scheduler.Enabled)
	require.Equal(t, 10, cfg.Scheduler.CheckFrequencyMinutes)
	require.Equal(t, 5, cfg.HTTP.ShutdownTimeoutSeconds)
	require.Equal(t, "articles.published", cfg.RabbitMQ.Queue)
}

func TestLoadConfig_YAML(t *testing.T) {
	yaml := `
timezone: UTC
database:
  driver: postgres
  dsn: postgres://u:p@db:5432/tadka
rabbitmq:
  url: amqp://guest:guest@mq:5672/
log:
  level: debug
`
	path := writeTempConfig(t, "config.yaml", yaml)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "UTC", cfg.Location().String())
	require.Equal(t, "amqp://guest:guest@mq:5672/", cfg.RabbitMQ.URL)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 5, cfg.Scheduler.CheckFrequencyMinutes)
	require.False(t, cfg.Scheduler.Enabled)
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "Asia/Kolkata", cfg.Location().String())
	require.Equal(t, config.DriverPostgres, cfg.Database.Driver)
	require.Equal(t, 5, cfg.Scheduler.CheckFrequencyMinutes)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TADKA_DB_DRIVER", "sqlite")
	t.Setenv("TADKA_DB_DSN", ":memory:")
	t.Setenv("TADKA_TIMEZONE", "Europe/London")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	require.Equal(t, ":memory:", cfg.Database.DSN)
	require.Equal(t, "Europe/London", cfg.Location().String())
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := config.LoadConfig("/nonexistent/config.json")
	require.Error(t, err)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{ invalid json }`)
	_, err := config.LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{
			name:    "unknown driver",
			mutate:  func(c *config.Config) { c.Database.Driver = "mongo" },
			wantErr: "unknown database driver",
		},
		{
			name:    "empty dsn",
			mutate:  func(c *config.Config) { c.Database.DSN = " " },
			wantErr: "dsn must not be empty",
		},
		{
			name:    "zero frequency",
			mutate:  func(c *config.Config) { c.Scheduler.CheckFrequencyMinutes = 0 },
			wantErr: "check frequency must be between 1 and 10080",
		},
		{
			name:    "frequency overflows the period",
			mutate:  func(c *config.Config) { c.Scheduler.CheckFrequencyMinutes = 200_000_000 },
			wantErr: "check frequency must be between 1 and 10080",
		},
		{name: "weekly frequency", mutate: func(c *config.Config) { c.Scheduler.CheckFrequencyMinutes = 10080 }},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *config.Config) { c.HTTP.ShutdownTimeoutSeconds = 0 },
			wantErr: "shutdown timeout must be >= 1 second",
		},
		{
			name:    "negative shutdown timeout",
			mutate:  func(c *config.Config) { c.HTTP.ShutdownTimeoutSeconds = -3 },
			wantErr: "shutdown timeout must be >= 1 second",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *config.Config) { c.Timezone = "Nowhere/Land" },
			wantErr: "invalid timezone",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

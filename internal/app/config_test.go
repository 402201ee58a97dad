package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[server]
port = ":5000"

[admin]
username = "file-admin"
password = "file-secret"

[database]
dsn = "exam.db"

[credentials]
default_prefix = "cand"
default_password_length = 6

[notify.mail]
host = "smtp.example.com"
from = "portal@example.com"

[notify.telegram]
chat_ids = [100, 200]

[export]
enabled = true
spreadsheet_id = "sheet-123"
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, sampleConfig), envLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Port)
	assert.Equal(t, "exam_session", cfg.Server.CookieName)
	assert.Equal(t, "file-admin", cfg.Admin.Username)
	assert.Equal(t, "exam.db", cfg.Database.DSN)
	assert.Equal(t, "./migrations", cfg.Database.MigrationsDir)
	assert.Equal(t, 5*time.Second, cfg.OpTimeout())
	assert.Equal(t, 30*time.Second, cfg.NotifyTimeout())
	assert.Equal(t, 4*time.Hour, cfg.SessionTTL())
	assert.Equal(t, "./logs", cfg.Ledger.LogsDir)
	assert.Equal(t, 100, cfg.Ledger.DefaultLimit)
	assert.Equal(t, "cand", cfg.Credentials.DefaultPrefix)
	assert.Equal(t, 6, cfg.Credentials.DefaultPasswordLength)
	assert.Equal(t, []int64{100, 200}, cfg.Notify.Telegram.ChatIDs)
	assert.True(t, cfg.Export.Enabled)
	assert.Equal(t, "sheet-123", cfg.Export.SpreadsheetID)
}

func TestLoadConfigEnvOverlay(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, sampleConfig), envLookup(map[string]string{
		"ADMIN_USERNAME": "env-admin",
		"ADMIN_PASSWORD": "env-secret",
		"DATABASE_DSN":   "postgres://exam:exam@db:5432/exam?sslmode=disable",
		"REDIS_URL":      "redis://cache:6379/0",
		"SMTP_PORT":      "465",
		"SMTP_USER":      "mailer",
		"NOTIFY_EMAIL":   "a@example.com, b@example.com",
		"TELEGRAM_TOKEN": "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env-admin", cfg.Admin.Username)
	assert.Equal(t, "env-secret", cfg.Admin.Password)
	assert.Equal(t, "postgres://exam:exam@db:5432/exam?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, "redis://cache:6379/0", cfg.Sessions.RedisURL)
	assert.Equal(t, 465, cfg.Notify.Mail.Port)
	assert.Equal(t, "mailer", cfg.Notify.Mail.Username)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.Mail.Admins)
	assert.False(t, cfg.Notify.Telegram.Enabled(), "empty env values do not override")
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), envLookup(nil))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "[server\nport = "), envLookup(nil))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "[admin]\nusername = \"a\"\npassword = \"b\"\n"), envLookup(nil))
	assert.ErrorContains(t, err, "port")

	_, err = loadConfig(writeConfig(t, "[server]\nport = \":5000\"\n"), envLookup(nil))
	assert.ErrorContains(t, err, "ADMIN_USERNAME")

	_, err = loadConfig(writeConfig(t, sampleConfig), envLookup(map[string]string{"SMTP_PORT": "smtp"}))
	assert.ErrorContains(t, err, "SMTP_PORT")
}

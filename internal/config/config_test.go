package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEmailConfig() Config {
	cfg := Default()
	cfg.Notify.Email.Sender = "me@example.com"
	cfg.Notify.Email.Recipient = "me@example.com"
	return cfg
}

func TestDefault_IsValidOnceEmailIsAddressed(t *testing.T) {
	out, res := NormalizeAndValidate(validEmailConfig())

	assert.True(t, res.OK(), res.Errors)
	assert.Equal(t, []string{"Data Science & Research", "Performance Science"}, out.Departments)
	assert.Equal(t, SourceBrowser, out.Target.Source)
	assert.Equal(t, ModeDaily, out.Schedule.Mode)
	assert.Equal(t, "me@example.com", out.Notify.Email.Username)
	assert.True(t, out.Target.Headless)
	assert.Equal(t, "#lever-integration-table", out.Target.Selectors.Container)
}

func TestDefault_EmailWithoutAddressesFails(t *testing.T) {
	_, res := NormalizeAndValidate(Default())

	assert.False(t, res.OK())
	assert.Contains(t, res.Errors, "notify.email.sender is required when email is enabled")
	assert.Error(t, res.Err())
}

func TestEnsureUserConfig_WritesDefaultOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	p, err := EnsureUserConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yml"), p)

	require.NoError(t, os.WriteFile(p, []byte("departments: [Sales]\n"), 0o644))
	p2, err := EnsureUserConfig(dir)
	require.NoError(t, err)
	b, _ := os.ReadFile(p2)
	assert.Equal(t, "departments: [Sales]\n", string(b))
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(`
departments: ["Sales", " Sales ", ""]
schedule:
  mode: interval
  interval_seconds: 7200
notify:
  method: both
  channels: []
`), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)

	// untouched keys keep defaults
	assert.Equal(t, "https://www.whoop.com/us/en/careers/", cfg.Target.CareersURL)
	assert.Equal(t, "America/New_York", cfg.Schedule.Timezone)

	out, res := NormalizeAndValidate(cfg)
	assert.Equal(t, []string{"Sales"}, out.Departments)
	assert.Equal(t, ModeInterval, out.Schedule.Mode)
	assert.Equal(t, []string{ChannelConsole, ChannelEmail}, out.Notify.Channels)
	// email is on but has no sender/recipient
	assert.False(t, res.OK())
}

func TestLoad_BadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte("departments: [unclosed"), 0o644))

	_, err := Load(p)
	assert.Error(t, err)
}

func TestNormalizeAndValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown source", func(c *Config) { c.Target.Source = "rss" }, `target.source must be one of browser, static, lever (got "rss")`},
		{"lever needs slug", func(c *Config) { c.Target.Source = "lever"; c.Target.LeverSlug = "" }, "target.lever_slug is required when target.source=lever"},
		{"relative url", func(c *Config) { c.Target.CareersURL = "/careers" }, `target.careers_url must be an absolute http(s) URL: "/careers"`},
		{"no departments", func(c *Config) { c.Departments = []string{" "} }, "departments must list at least one department to monitor"},
		{"interval zero", func(c *Config) { c.Schedule.Mode = "interval"; c.Schedule.IntervalSeconds = 0 }, "schedule.interval_seconds must be > 0 when schedule.mode=interval"},
		{"bad daily_at", func(c *Config) { c.Schedule.DailyAt = "8am" }, `schedule.daily_at: want HH:MM, got "8am"`},
		{"cron missing", func(c *Config) { c.Schedule.Mode = "cron"; c.Schedule.Cron = "" }, "schedule.cron is required when schedule.mode=cron"},
		{"bad mode", func(c *Config) { c.Schedule.Mode = "hourly" }, `schedule.mode must be one of once, interval, daily, cron (got "hourly")`},
		{"bad channel", func(c *Config) { c.Notify.Channels = []string{"pager"} }, `notify.channels: unknown channel "pager" (console, email, both, telegram, imap)`},
		{"telegram chat", func(c *Config) { c.Notify.Channels = []string{"telegram"} }, "notify.telegram.chat_id is required when telegram is enabled"},
		{"bad listen", func(c *Config) { c.App.Listen = "38471" }, `app.listen "38471": address 38471: missing port in address`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validEmailConfig()
			tt.mutate(&cfg)
			_, res := NormalizeAndValidate(cfg)
			assert.Contains(t, res.Errors, tt.wantErr)
		})
	}
}

func TestNormalizeAndValidate_BadTimezone(t *testing.T) {
	cfg := validEmailConfig()
	cfg.Schedule.Timezone = "Mars/Olympus"
	_, res := NormalizeAndValidate(cfg)
	assert.False(t, res.OK())
}

func TestNormalizeAndValidate_Warnings(t *testing.T) {
	cfg := validEmailConfig()
	cfg.Schedule.Mode = "interval"
	cfg.Schedule.IntervalSeconds = 30
	cfg.Notify.Channels = nil

	out, res := NormalizeAndValidate(cfg)
	assert.True(t, res.OK(), res.Errors)
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, []string{ChannelConsole}, out.Notify.Channels)
}

func TestParseDailyAt(t *testing.T) {
	h, m, err := ParseDailyAt("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8, h)
	assert.Equal(t, 30, m)

	_, _, err = ParseDailyAt("25:00")
	assert.Error(t, err)
}

func TestOverlay(t *testing.T) {
	env := map[string]string{
		"CAREERWATCH_SMTP_HOST":        "smtp.example.com",
		"WHOOP_SMTP_PORT":              "2525",
		"WHOOP_SENDER_EMAIL":           "legacy@example.com",
		"CAREERWATCH_SENDER_EMAIL":     "new@example.com",
		"CAREERWATCH_RECEIVER_EMAIL":   "to@example.com",
		"CAREERWATCH_TELEGRAM_CHAT_ID": "-100123",
		"CAREERWATCH_NOTIFY":           "console,telegram",
		"CAREERWATCH_DATA_DIR":         "/var/lib/careerwatch",
		"RUN_ONCE":                     "1",
	}
	cfg := Default()
	require.NoError(t, Overlay(&cfg, func(k string) string { return env[k] }))

	assert.Equal(t, "smtp.example.com", cfg.Notify.Email.SMTPHost)
	assert.Equal(t, 2525, cfg.Notify.Email.SMTPPort)
	assert.Equal(t, "new@example.com", cfg.Notify.Email.Sender)
	assert.Equal(t, "to@example.com", cfg.Notify.Email.Recipient)
	assert.Equal(t, int64(-100123), cfg.Notify.Telegram.ChatID)
	assert.Equal(t, []string{"console", "telegram"}, cfg.Notify.Channels)
	assert.Equal(t, "/var/lib/careerwatch", cfg.App.DataDir)
	assert.Equal(t, ModeOnce, cfg.Schedule.Mode)
}

func TestOverlay_BadPort(t *testing.T) {
	cfg := Default()
	err := Overlay(&cfg, func(k string) string {
		if k == "CAREERWATCH_SMTP_PORT" {
			return "abc"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestOverlay_RunOnceFalsy(t *testing.T) {
	cfg := Default()
	require.NoError(t, Overlay(&cfg, func(k string) string {
		if k == "RUN_ONCE" {
			return "false"
		}
		return ""
	}))
	assert.Equal(t, ModeDaily, cfg.Schedule.Mode)
}

func TestLoadDotEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("CAREERWATCH_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("CAREERWATCH_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CAREERWATCH_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), p))
	assert.Equal(t, "from-file", os.Getenv("CAREERWATCH_TEST_DOTENV"))
}

func TestSaveAtomic(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte("old: true\n"), 0o644))

	cfg := validEmailConfig()
	cfg.Departments = []string{"Sales"}
	require.NoError(t, SaveAtomic(p, cfg))

	got, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sales"}, got.Departments)

	bak, err := os.ReadFile(p + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "old: true\n", string(bak))

	bad := cfg
	bad.Departments = nil
	assert.Error(t, SaveAtomic(p, bad))
}

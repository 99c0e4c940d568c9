package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const EnvPrefix = "CAREERWATCH_"

// LoadDotEnv reads KEY=value files into the process environment. Variables
// that are already set win; missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("dotenv %s: %w", p, err)
		}
	}
	return nil
}

// Overlay applies environment overrides to cfg. The legacy WHOOP_* names are
// honoured as fallbacks.
func Overlay(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(names ...string) string {
		for _, n := range names {
			if v := strings.TrimSpace(getenv(n)); v != "" {
				return v
			}
		}
		return ""
	}
	set := func(dst *string, names ...string) {
		if v := lookup(names...); v != "" {
			*dst = v
		}
	}

	set(&cfg.Notify.Email.SMTPHost, EnvPrefix+"SMTP_HOST", "WHOOP_SMTP_SERVER")
	set(&cfg.Notify.Email.Sender, EnvPrefix+"SENDER_EMAIL", "WHOOP_SENDER_EMAIL")
	set(&cfg.Notify.Email.Recipient, EnvPrefix+"RECEIVER_EMAIL", "WHOOP_RECEIVER_EMAIL")
	set(&cfg.App.DataDir, EnvPrefix+"DATA_DIR")
	set(&cfg.App.Listen, EnvPrefix+"LISTEN")

	if v := lookup(EnvPrefix+"SMTP_PORT", "WHOOP_SMTP_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSMTP_PORT: %w", EnvPrefix, err)
		}
		cfg.Notify.Email.SMTPPort = n
	}
	if v := lookup(EnvPrefix + "TELEGRAM_CHAT_ID"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sTELEGRAM_CHAT_ID: %w", EnvPrefix, err)
		}
		cfg.Notify.Telegram.ChatID = n
	}
	if v := lookup(EnvPrefix + "NOTIFY"); v != "" {
		cfg.Notify.Method = ""
		cfg.Notify.Channels = splitList(v)
	}
	if truthy(getenv("RUN_ONCE")) {
		cfg.Schedule.Mode = ModeOnce
	}
	return nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"careerwatch/internal/source/careers"

	"gopkg.in/yaml.v3"
)

//go:embed default.yml
var defaultYAML []byte

type Config struct {
	App struct {
		DataDir string `yaml:"data_dir"`
		Listen  string `yaml:"listen"`
	} `yaml:"app"`

	Target struct {
		Company        string            `yaml:"company"`
		CareersURL     string            `yaml:"careers_url"`
		Source         string            `yaml:"source"`
		LeverSlug      string            `yaml:"lever_slug"`
		UserAgent      string            `yaml:"user_agent"`
		TimeoutSeconds int               `yaml:"timeout_seconds"`
		Headless       bool              `yaml:"headless"`
		Selectors      careers.Selectors `yaml:"selectors"`
	} `yaml:"target"`

	Departments []string `yaml:"departments"`

	Schedule struct {
		Mode            string `yaml:"mode"`
		IntervalSeconds int    `yaml:"interval_seconds"`
		DailyAt         string `yaml:"daily_at"`
		Timezone        string `yaml:"timezone"`
		Cron            string `yaml:"cron"`
		RunOnStart      bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`

	Storage struct {
		SnapshotFile string `yaml:"snapshot_file"`
		HistoryDB    string `yaml:"history_db"`
	} `yaml:"storage"`

	Notify struct {
		// Method is the legacy single-value selector (console|email|both);
		// it is folded into Channels by NormalizeAndValidate.
		Method        string   `yaml:"method,omitempty"`
		Channels      []string `yaml:"channels"`
		SubjectPrefix string   `yaml:"subject_prefix"`

		Email struct {
			SMTPHost  string `yaml:"smtp_host"`
			SMTPPort  int    `yaml:"smtp_port"`
			Sender    string `yaml:"sender"`
			Recipient string `yaml:"recipient"`
			Username  string `yaml:"username"`
			// starttls | tls | none; empty picks tls for port 465, else starttls
			Security  string `yaml:"security"`
		} `yaml:"email"`

		Telegram struct {
			ChatID int64 `yaml:"chat_id"`
		} `yaml:"telegram"`

		IMAP struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Username string `yaml:"username"`
			Mailbox  string `yaml:"mailbox"`
		} `yaml:"imap"`
	} `yaml:"notify"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded default.yml: %v", err))
	}
	return cfg
}

// Load reads path over the built-in defaults, so keys missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Timeout() time.Duration {
	if c.Target.TimeoutSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(c.Target.TimeoutSeconds) * time.Second
}

// Has reports whether channel is selected.
func (c Config) Has(channel string) bool {
	for _, ch := range c.Notify.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

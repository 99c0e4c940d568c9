package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	ModeOnce     = "once"
	ModeInterval = "interval"
	ModeDaily    = "daily"
	ModeCron     = "cron"

	SourceBrowser = "browser"
	SourceStatic  = "static"
	SourceLever   = "lever"

	ChannelConsole  = "console"
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelIMAP     = "imap"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err returns the validation errors as one error, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a normalized copy of cfg together with any
// problems found. Callers should refuse to start when the result is not OK.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" || seen[x] {
				continue
			}
			seen[x] = true
			ys = append(ys, x)
		}
		return ys
	}

	// ---- target ----

	out.Target.Company = strings.TrimSpace(out.Target.Company)
	out.Target.CareersURL = strings.TrimSpace(out.Target.CareersURL)
	out.Target.LeverSlug = strings.TrimSpace(out.Target.LeverSlug)
	out.Target.Source = strings.ToLower(strings.TrimSpace(out.Target.Source))
	if out.Target.Source == "" {
		out.Target.Source = SourceBrowser
	}
	if out.Target.TimeoutSeconds <= 0 {
		out.Target.TimeoutSeconds = 90
	}
	out.Target.Selectors = out.Target.Selectors.WithDefaults()

	switch out.Target.Source {
	case SourceBrowser, SourceStatic:
		if out.Target.CareersURL == "" {
			res.addErr("target.careers_url is required when target.source=%s", out.Target.Source)
		}
	case SourceLever:
		if out.Target.LeverSlug == "" {
			res.addErr("target.lever_slug is required when target.source=lever")
		}
		if out.Target.CareersURL == "" {
			res.addWarn("target.careers_url is empty; postings without a link will have no URL.")
		}
	default:
		res.addErr("target.source must be one of browser, static, lever (got %q)", out.Target.Source)
	}
	if out.Target.CareersURL != "" {
		if u, err := url.Parse(out.Target.CareersURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			res.addErr("target.careers_url must be an absolute http(s) URL: %q", out.Target.CareersURL)
		}
	}
	if out.Target.Company == "" {
		res.addWarn("target.company is empty; the report header will be generic.")
	}

	// ---- departments ----

	out.Departments = trimList(out.Departments)
	if len(out.Departments) == 0 {
		res.addErr("departments must list at least one department to monitor")
	}

	// ---- schedule ----

	out.Schedule.Mode = strings.ToLower(strings.TrimSpace(out.Schedule.Mode))
	if out.Schedule.Mode == "" {
		out.Schedule.Mode = ModeOnce
	}
	if _, err := out.Location(); err != nil {
		res.addErr("schedule.timezone %q: %v", out.Schedule.Timezone, err)
	}
	switch out.Schedule.Mode {
	case ModeOnce:
	case ModeInterval:
		if out.Schedule.IntervalSeconds <= 0 {
			res.addErr("schedule.interval_seconds must be > 0 when schedule.mode=interval")
		} else if out.Schedule.IntervalSeconds < 300 {
			res.addWarn("schedule.interval_seconds is very low (%d); the careers page changes a few times a week at most.", out.Schedule.IntervalSeconds)
		}
	case ModeDaily:
		if _, _, err := ParseDailyAt(out.Schedule.DailyAt); err != nil {
			res.addErr("schedule.daily_at: %v", err)
		}
	case ModeCron:
		if strings.TrimSpace(out.Schedule.Cron) == "" {
			res.addErr("schedule.cron is required when schedule.mode=cron")
		} else if _, err := cron.ParseStandard(out.Schedule.Cron); err != nil {
			res.addErr("schedule.cron %q: %v", out.Schedule.Cron, err)
		}
	default:
		res.addErr("schedule.mode must be one of once, interval, daily, cron (got %q)", out.Schedule.Mode)
	}

	// ---- storage ----

	out.Storage.SnapshotFile = strings.TrimSpace(out.Storage.SnapshotFile)
	if out.Storage.SnapshotFile == "" {
		out.Storage.SnapshotFile = "whoop_jobs_data.json"
	}
	out.Storage.HistoryDB = strings.TrimSpace(out.Storage.HistoryDB)

	// ---- app ----

	out.App.Listen = strings.TrimSpace(out.App.Listen)
	if out.App.Listen != "" {
		if _, port, err := net.SplitHostPort(out.App.Listen); err != nil {
			res.addErr("app.listen %q: %v", out.App.Listen, err)
		} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
			res.addErr("app.listen port must be 0..65535")
		}
	}

	// ---- notify ----

	out.Notify.Channels = normalizeChannels(out.Notify.Method, out.Notify.Channels)
	out.Notify.Method = ""
	if len(out.Notify.Channels) == 0 {
		res.addWarn("notify.channels is empty; reports go to the console.")
		out.Notify.Channels = []string{ChannelConsole}
	}
	for _, ch := range out.Notify.Channels {
		switch ch {
		case ChannelConsole, ChannelEmail, ChannelTelegram, ChannelIMAP:
		default:
			res.addErr("notify.channels: unknown channel %q (console, email, both, telegram, imap)", ch)
		}
	}
	if strings.TrimSpace(out.Notify.SubjectPrefix) == "" {
		out.Notify.SubjectPrefix = strings.TrimSpace(out.Target.Company + " Careers")
	}

	// password not required here; it lives in the keychain or env
	em := &out.Notify.Email
	em.Sender = strings.TrimSpace(em.Sender)
	em.Recipient = strings.TrimSpace(em.Recipient)
	if strings.TrimSpace(em.Username) == "" {
		em.Username = em.Sender
	}
	em.Security = strings.ToLower(strings.TrimSpace(em.Security))
	if em.Security == "" {
		em.Security = "starttls"
		if em.SMTPPort == 465 {
			em.Security = "tls"
		}
	}
	if out.Has(ChannelEmail) {
		switch em.Security {
		case "starttls", "tls", "none":
		default:
			res.addErr("notify.email.security must be starttls, tls or none (got %q)", em.Security)
		}
		if strings.TrimSpace(em.SMTPHost) == "" {
			res.addErr("notify.email.smtp_host is required when email is enabled")
		}
		if em.SMTPPort <= 0 || em.SMTPPort > 65535 {
			res.addErr("notify.email.smtp_port must be 1..65535")
		}
		if em.Sender == "" {
			res.addErr("notify.email.sender is required when email is enabled")
		}
		if em.Recipient == "" {
			res.addErr("notify.email.recipient is required when email is enabled")
		}
	}

	if out.Has(ChannelTelegram) && out.Notify.Telegram.ChatID == 0 {
		res.addErr("notify.telegram.chat_id is required when telegram is enabled")
	}

	im := &out.Notify.IMAP
	if strings.TrimSpace(im.Username) == "" {
		im.Username = em.Sender
	}
	if strings.TrimSpace(im.Mailbox) == "" {
		im.Mailbox = "careerwatch"
	}
	if im.Port == 0 {
		im.Port = 993
	}
	if out.Has(ChannelIMAP) {
		if strings.TrimSpace(im.Host) == "" {
			res.addErr("notify.imap.host is required when imap is enabled")
		}
		if strings.TrimSpace(im.Username) == "" {
			res.addErr("notify.imap.username is required when imap is enabled")
		}
	}

	return out, res
}

// normalizeChannels folds the legacy method value into the channel list,
// expands "both" and drops duplicates, keeping first-seen order.
func normalizeChannels(method string, channels []string) []string {
	var raw []string
	if m := strings.TrimSpace(method); m != "" {
		raw = append(raw, splitList(m)...)
	}
	raw = append(raw, channels...)

	seen := map[string]bool{}
	var out []string
	add := func(ch string) {
		if ch == "" || seen[ch] {
			return
		}
		seen[ch] = true
		out = append(out, ch)
	}
	for _, ch := range raw {
		ch = strings.ToLower(strings.TrimSpace(ch))
		if ch == "both" {
			add(ChannelConsole)
			add(ChannelEmail)
			continue
		}
		add(ch)
	}
	return out
}

// ParseDailyAt parses "HH:MM" (24h).
func ParseDailyAt(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// Location resolves schedule.timezone; empty means the local zone.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Schedule.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

// DataPath resolves p against app.data_dir unless it is absolute.
func (c Config) DataPath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.App.DataDir == "" {
		return p
	}
	return filepath.Join(c.App.DataDir, p)
}

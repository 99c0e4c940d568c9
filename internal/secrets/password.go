package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"careerwatch/internal/config"

	"github.com/zalando/go-keyring"
)

const (
	// “Service” groups the app’s secrets in the OS keychain.
	KeyringService = "careerwatch"
)

// Kind names one stored credential.
type Kind string

const (
	SMTP     Kind = "smtp"
	Telegram Kind = "telegram"
	IMAP     Kind = "imap"
)

var ErrNotFound = errors.New("secret not found")

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case SMTP, Telegram, IMAP:
		return k, nil
	}
	return "", fmt.Errorf("unknown secret %q (smtp, telegram, imap)", s)
}

func (k Kind) envNames() []string {
	switch k {
	case SMTP:
		return []string{config.EnvPrefix + "SMTP_PASSWORD", "WHOOP_SMTP_PASSWORD"}
	case Telegram:
		return []string{config.EnvPrefix + "TELEGRAM_TOKEN"}
	case IMAP:
		return []string{config.EnvPrefix + "IMAP_PASSWORD"}
	}
	return nil
}

// Account returns the keyring account a credential is stored under.
func Account(k Kind, cfg config.Config) string {
	switch k {
	case SMTP:
		return fmt.Sprintf("careerwatch:smtp:%s@%s", cfg.Notify.Email.Username, cfg.Notify.Email.SMTPHost)
	case IMAP:
		return fmt.Sprintf("careerwatch:imap:%s@%s", cfg.Notify.IMAP.Username, cfg.Notify.IMAP.Host)
	case Telegram:
		return fmt.Sprintf("careerwatch:telegram:%d", cfg.Notify.Telegram.ChatID)
	}
	return ""
}

// Store looks secrets up in the OS keychain first, then in the environment.
type Store struct {
	Getenv func(string) string
}

func NewStore() *Store {
	return &Store{Getenv: os.Getenv}
}

func (s *Store) Get(k Kind, cfg config.Config) (string, error) {
	// 1) Keyring first (recommended)
	if account := Account(k, cfg); strings.TrimSpace(account) != "" {
		pw, err := keyring.Get(KeyringService, account)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}

	// 2) Env fallback for headless/CI runs
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range k.envNames() {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v, nil
		}
	}

	return "", fmt.Errorf("%s: %w (set it with -set-secret %s or %s)", k, ErrNotFound, k, k.envNames()[0])
}

func (s *Store) Set(k Kind, cfg config.Config, secret string) error {
	account := Account(k, cfg)
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, secret)
}

func (s *Store) Delete(k Kind, cfg config.Config) error {
	account := Account(k, cfg)
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

package notify

import (
	"fmt"
	"io"

	"careerwatch/internal/config"
	"careerwatch/internal/secrets"
)

// SecretSource resolves credentials for the sinks that need them.
type SecretSource interface {
	Get(k secrets.Kind, cfg config.Config) (string, error)
}

// Build maps the configured channels to sinks. cfg must already be normalized,
// so "both" has been expanded to console and email.
func Build(cfg config.Config, sec SecretSource, stdout io.Writer) (Multi, error) {
	n := cfg.Notify
	env := Envelope{
		From:          n.Email.Sender,
		To:            n.Email.Recipient,
		SubjectPrefix: n.SubjectPrefix,
	}

	var out Multi
	for _, ch := range n.Channels {
		switch ch {
		case config.ChannelConsole:
			out = append(out, Console{W: stdout})

		case config.ChannelEmail:
			pw, err := sec.Get(secrets.SMTP, cfg)
			if err != nil {
				return nil, fmt.Errorf("notify email: %w", err)
			}
			out = append(out, &Email{
				Envelope: env,
				Host:     n.Email.SMTPHost,
				Port:     n.Email.SMTPPort,
				Username: n.Email.Username,
				Password: pw,
				Security: n.Email.Security,
			})

		case config.ChannelTelegram:
			token, err := sec.Get(secrets.Telegram, cfg)
			if err != nil {
				return nil, fmt.Errorf("notify telegram: %w", err)
			}
			out = append(out, &Telegram{Token: token, ChatID: n.Telegram.ChatID})

		case config.ChannelIMAP:
			pw, err := sec.Get(secrets.IMAP, cfg)
			if err != nil {
				return nil, fmt.Errorf("notify imap: %w", err)
			}
			out = append(out, &IMAPArchive{
				Envelope: env,
				Host:     n.IMAP.Host,
				Port:     n.IMAP.Port,
				Username: n.IMAP.Username,
				Password: pw,
				Mailbox:  n.IMAP.Mailbox,
			})

		default:
			return nil, fmt.Errorf("notify: unknown channel %q", ch)
		}
	}
	if len(out) == 0 {
		out = Multi{Console{W: stdout}}
	}
	return out, nil
}

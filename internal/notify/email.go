package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Envelope is the fixed sender, recipient and subject template of a report mail.
type Envelope struct {
	From          string
	To            string
	SubjectPrefix string
}

// ComposeMessage builds an RFC 5322 text/plain UTF-8 message for report.
func ComposeMessage(env Envelope, report string, hasNew bool, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: env.From}})
	h.SetAddressList("To", []*mail.Address{{Address: env.To}})
	h.SetSubject(Subject(env.SubjectPrefix, hasNew))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	if _, err := io.WriteString(w, report); err != nil {
		return nil, fmt.Errorf("compose body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compose close: %w", err)
	}
	return buf.Bytes(), nil
}

// Email submits the report over SMTP.
type Email struct {
	Envelope
	Host     string
	Port     int
	Username string
	Password string
	// starttls | tls | none
	Security  string
	TLSConfig *tls.Config
	Timeout   time.Duration
	Now       func() time.Time
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(ctx context.Context, report string, hasNew bool) error {
	if e.From == "" || e.To == "" {
		return errors.New("email sender/recipient is required")
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	msg, err := ComposeMessage(e.Envelope, report, hasNew, now())
	if err != nil {
		return err
	}

	c, err := e.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	// go-smtp takes no context
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	if e.Password != "" {
		user := e.Username
		if user == "" {
			user = e.From
		}
		if err := c.Auth(sasl.NewPlainClient("", user, e.Password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(e.From, nil); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(e.To, nil); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

func (e *Email) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	tlsCfg := e.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: e.Host}
	}

	var (
		c   *smtp.Client
		err error
	)
	switch e.Security {
	case "tls":
		c, err = smtp.DialTLS(addr, tlsCfg)
	case "none":
		c, err = smtp.Dial(addr)
	default:
		c, err = smtp.DialStartTLS(addr, tlsCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c.CommandTimeout = timeout
	c.SubmissionTimeout = timeout
	return c, nil
}

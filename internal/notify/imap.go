package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPArchive appends each report, as a composed mail, to a mailbox so the
// history of reports is browsable from any mail client.
type IMAPArchive struct {
	Envelope
	Host      string
	Port      int
	Username  string
	Password  string
	Mailbox   string
	TLSConfig *tls.Config
	Now       func() time.Time
}

func (a *IMAPArchive) Name() string { return "imap" }

func (a *IMAPArchive) Notify(ctx context.Context, report string, hasNew bool) error {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	ts := now()
	msg, err := ComposeMessage(a.Envelope, report, hasNew, ts)
	if err != nil {
		return err
	}

	tlsCfg := a.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: a.Host}
	}
	c, err := DialAndLoginIMAP(ctx, net.JoinHostPort(a.Host, strconv.Itoa(a.Port)), a.Username, a.Password, tlsCfg)
	if err != nil {
		return err
	}
	defer c.Close()

	// CREATE fails when the mailbox exists; APPEND reports a real problem
	_ = c.Create(a.Mailbox, nil).Wait()

	flags := []imap.Flag{}
	if !hasNew {
		flags = append(flags, imap.FlagSeen)
	}
	cmd := c.Append(a.Mailbox, int64(len(msg)), &imap.AppendOptions{Flags: flags, Time: ts})
	if _, err := cmd.Write(msg); err != nil {
		return fmt.Errorf("imap append write: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("imap append: %w", err)
	}

	_ = c.Logout().Wait()
	return nil
}

// DialAndLoginIMAP connects over TLS and logs in.
func DialAndLoginIMAP(ctx context.Context, addr, username, password string, tlsCfg *tls.Config) (*imapclient.Client, error) {
	if addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("imap username/password is required")
	}
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	// DialTLS expects *imapclient.Options, not *tls.Config.
	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: tlsCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	context.AfterFunc(ctx, func() { _ = c.Close() })

	// LoginCommand.Wait() returns only error (not (data, err)).
	if err := c.Login(username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	return c, nil
}

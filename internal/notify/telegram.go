package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramLimit is the Bot API's maximum message length in UTF-16 code units.
const telegramLimit = 4096

// Telegram posts the report to a chat as plain text.
type Telegram struct {
	Token  string
	ChatID int64

	// Endpoint overrides tgbotapi.APIEndpoint ("https://api.telegram.org/bot%s/%s").
	Endpoint string
	Client   *http.Client
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(ctx context.Context, report string, _ bool) error {
	if t.Token == "" || t.ChatID == 0 {
		return errors.New("telegram token/chat id is required")
	}
	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	hc := t.Client
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(t.Token, endpoint, hc)
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}

	parts := splitMessage(report, telegramLimit)
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.ChatID, part)
		msg.DisableWebPagePreview = true
		if _, err := bot.Send(msg); err != nil {
			return fmt.Errorf("telegram send part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit UTF-16 code units,
// which is how the Bot API measures message length. It breaks on line
// boundaries where possible and never inside a rune.
func splitMessage(text string, limit int) []string {
	if utf16Len(text) <= limit {
		return []string{text}
	}

	var out []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf16Len(line)
		if curLen+n <= limit {
			cur.WriteString(line)
			curLen += n
			continue
		}
		flush()
		if n <= limit {
			cur.WriteString(line)
			curLen = n
			continue
		}
		for _, r := range line {
			w := runeUnits(r)
			if curLen+w > limit {
				flush()
			}
			cur.WriteRune(r)
			curLen += w
		}
	}
	flush()
	return out
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

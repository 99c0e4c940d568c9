// Package notify delivers a rendered report to the configured sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Notifier interface {
	Name() string
	Notify(ctx context.Context, report string, hasNew bool) error
}

// Subject is the mail subject for a report.
func Subject(prefix string, hasNew bool) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "Careers"
	}
	if hasNew {
		return prefix + " - NEW Job Listings"
	}
	return prefix + " - Current Job Listings"
}

// Console prints the report.
type Console struct {
	W io.Writer
}

func (c Console) Name() string { return "console" }

func (c Console) Notify(_ context.Context, report string, _ bool) error {
	w := c.W
	if w == nil {
		w = os.Stdout
	}
	_, err := io.WriteString(w, report+"\n")
	return err
}

// Multi sends to every sink in order. A failing sink is logged and does not
// stop the others; all failures are joined into the returned error.
type Multi []Notifier

func (m Multi) Name() string {
	names := make([]string, 0, len(m))
	for _, n := range m {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

func (m Multi) Notify(ctx context.Context, report string, hasNew bool) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, report, hasNew); err != nil {
			log.Printf("[notify:%s] failed: %v", n.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		if _, ok := n.(Console); !ok {
			log.Printf("[notify:%s] sent", n.Name())
		}
	}
	return errors.Join(errs...)
}

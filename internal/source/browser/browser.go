// Package browser renders a JavaScript careers page in headless Chrome,
// expands every department accordion and hands the resulting DOM to the
// careers parser.
package browser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"careerwatch/internal/source"
	"careerwatch/internal/source/careers"
	"careerwatch/internal/source/util"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

type Config struct {
	URL       string
	UserAgent string
	Headless  bool
	Selectors careers.Selectors

	// ControlURL connects to an already running Chrome instead of launching one.
	ControlURL string
	// Bin overrides the Chrome binary; empty lets the launcher find or download one.
	Bin string

	Timeout       time.Duration // whole fetch
	ContainerWait time.Duration
	HeaderWait    time.Duration
	ClickEvery    time.Duration
	Settle        time.Duration
	WindowSize    string
}

func (c *Config) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
	if c.ContainerWait <= 0 {
		c.ContainerWait = 15 * time.Second
	}
	if c.HeaderWait <= 0 {
		c.HeaderWait = 10 * time.Second
	}
	if c.ClickEvery <= 0 {
		c.ClickEvery = 300 * time.Millisecond
	}
	if c.Settle <= 0 {
		c.Settle = 3 * time.Second
	}
	if c.WindowSize == "" {
		c.WindowSize = "1920,1080"
	}
	c.Selectors = c.Selectors.WithDefaults()
}

type Source struct {
	cfg    Config
	parser careers.Parser
}

func New(cfg Config) *Source {
	cfg.defaults()
	return &Source{cfg: cfg, parser: careers.NewParser(cfg.Selectors)}
}

func (s *Source) Name() string { return "browser" }

// Fetch launches a fresh browser per call. Cycles are hours apart, so nothing
// is kept alive between them.
func (s *Source) Fetch(ctx context.Context) (source.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	b, closeFn, err := s.connect(ctx)
	if err != nil {
		return source.Page{}, err
	}
	defer closeFn()

	page, err := stealth.Page(b)
	if err != nil {
		return source.Page{}, fmt.Errorf("browser: open page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	log.Printf("[source:browser] loading %s", s.cfg.URL)
	if err := page.Navigate(s.cfg.URL); err != nil {
		return source.Page{}, fmt.Errorf("browser: navigate %s: %w", s.cfg.URL, err)
	}
	if err := page.WaitLoad(); err != nil {
		log.Printf("[source:browser] wait load: %v", err)
	}

	sel := s.cfg.Selectors
	if _, err := page.Timeout(s.cfg.ContainerWait).Element(sel.Container); err != nil {
		log.Printf("[source:browser] container %s not found in %s: %v", sel.Container, s.cfg.ContainerWait, err)
	} else if _, err := page.Timeout(s.cfg.HeaderWait).Element(sel.Header); err != nil {
		log.Printf("[source:browser] no accordion headers after %s: %v", s.cfg.HeaderWait, err)
	}

	if err := s.expand(ctx, page); err != nil {
		return source.Page{}, err
	}

	html, err := page.HTML()
	if err != nil {
		return source.Page{}, fmt.Errorf("browser: read html: %w", err)
	}

	out, err := s.parser.Parse(strings.NewReader(html), s.cfg.URL)
	if err != nil {
		return source.Page{}, err
	}
	log.Printf("[source:browser] postings=%d departments=%d", len(out.Postings), len(out.Departments))
	return out, nil
}

func (s *Source) connect(ctx context.Context) (*rod.Browser, func(), error) {
	controlURL := s.cfg.ControlURL
	var l *launcher.Launcher

	if controlURL == "" {
		l = launcher.New().
			Context(ctx).
			Headless(s.cfg.Headless).
			NoSandbox(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage").
			Set("disable-gpu").
			Set("window-size", s.cfg.WindowSize).
			Set("user-agent", s.cfg.UserAgent)
		if s.cfg.Bin != "" {
			l = l.Bin(s.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("browser: launch: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("browser: connect: %w", err)
	}

	return b, func() {
		_ = b.Close()
		if l != nil {
			l.Kill()
			l.Cleanup()
		}
	}, nil
}

// expand clicks every accordion header so collapsed job rows are rendered.
// A header that fails to click is skipped.
func (s *Source) expand(ctx context.Context, page *rod.Page) error {
	headers, err := page.Elements(s.cfg.Selectors.Header)
	if err != nil {
		return fmt.Errorf("browser: list headers: %w", err)
	}
	log.Printf("[source:browser] expanding %d departments", len(headers))

	pace := util.Pacer(s.cfg.ClickEvery)
	for i, h := range headers {
		if err := pace.Wait(ctx); err != nil {
			return err
		}
		if _, err := h.Eval(`() => this.click()`); err != nil {
			log.Printf("[source:browser] click header %d: %v", i, err)
		}
	}

	t := time.NewTimer(s.cfg.Settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package static fetches a server-rendered careers page over plain HTTP.
package static

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"careerwatch/internal/source"
	"careerwatch/internal/source/careers"
	"careerwatch/internal/source/util"
)

const maxBodyBytes = 10 << 20

type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	Selectors careers.Selectors
}

type Source struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
	parser  careers.Parser
}

func New(cfg Config, limiter *util.HostLimiter) *Source {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "careerwatch/1.0 (+local)"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Source{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		parser:  careers.NewParser(cfg.Selectors),
	}
}

func (s *Source) Name() string { return "static" }

func (s *Source) Fetch(ctx context.Context) (source.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return source.Page{}, fmt.Errorf("static request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	if err := s.limiter.WaitURL(ctx, s.cfg.URL); err != nil {
		return source.Page{}, err
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return source.Page{}, fmt.Errorf("static get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return source.Page{}, fmt.Errorf("static status %d", res.StatusCode)
	}

	page, err := s.parser.Parse(io.LimitReader(res.Body, maxBodyBytes), s.cfg.URL)
	if err != nil {
		return source.Page{}, err
	}
	log.Printf("[source:static] url=%s postings=%d departments=%d", s.cfg.URL, len(page.Postings), len(page.Departments))
	return page, nil
}

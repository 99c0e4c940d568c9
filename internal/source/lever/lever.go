package lever

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"careerwatch/internal/domain"
	"careerwatch/internal/source"
	"careerwatch/internal/source/util"
)

const DefaultBaseURL = "https://api.lever.co/v0/postings/"

type Config struct {
	Slug       string // api.lever.co/v0/postings/<slug>
	BaseURL    string // defaults to DefaultBaseURL
	CareersURL string // used when a posting has no hostedUrl
	UserAgent  string
	Timeout    time.Duration
}

type Source struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(cfg Config, limiter *util.HostLimiter) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "careerwatch/1.0 (+local)"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Source{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

func (s *Source) Name() string { return "lever" }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	Categories struct {
		Location string `json:"location"`
		Team     string `json:"team"`
	} `json:"categories"`
}

func (s *Source) apiURL() string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/" + url.PathEscape(s.cfg.Slug) + "?mode=json"
}

func (s *Source) Fetch(ctx context.Context) (source.Page, error) {
	if strings.TrimSpace(s.cfg.Slug) == "" {
		return source.Page{}, fmt.Errorf("lever: empty board slug")
	}
	apiURL := s.apiURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return source.Page{}, fmt.Errorf("lever request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	if err := s.limiter.WaitURL(ctx, apiURL); err != nil {
		return source.Page{}, err
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return source.Page{}, fmt.Errorf("lever get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return source.Page{}, fmt.Errorf("lever status %d", res.StatusCode)
	}

	var postings []leverPosting
	hr := source.NewHashReader(res.Body)
	if err := json.NewDecoder(hr).Decode(&postings); err != nil {
		return source.Page{}, fmt.Errorf("lever decode: %w", err)
	}
	_, _ = io.Copy(io.Discard, hr)

	page := toPage(postings, s.cfg.CareersURL)
	page.Hash = hr.Sum()
	log.Printf("[source:lever] slug=%s postings=%d teams=%d", s.cfg.Slug, len(page.Postings), len(page.Departments))
	return page, nil
}

// toPage maps API postings to a page. Teams are counted in order of first
// appearance, labelled like the careers page accordions ("3 Jobs").
func toPage(postings []leverPosting, careersURL string) source.Page {
	page := source.Page{URL: careersURL}

	counts := map[string]int{}
	var order []string
	for _, p := range postings {
		title := util.CleanText(p.Text)
		if title == "" {
			continue
		}
		team := util.CleanText(p.Categories.Team)
		u := strings.TrimSpace(p.HostedURL)
		if u == "" {
			u = careersURL
		}
		page.Postings = append(page.Postings, domain.Posting{Title: title, Department: team, URL: u})

		if team == "" {
			continue
		}
		if _, ok := counts[team]; !ok {
			order = append(order, team)
		}
		counts[team]++
	}

	for _, team := range order {
		page.Departments = append(page.Departments, domain.DepartmentCount{
			Department: team,
			Count:      util.Plural(counts[team], "Job", "Jobs"),
		})
	}
	return page
}

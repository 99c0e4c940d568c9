package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"careerwatch/internal/domain"

	"github.com/gofrs/flock"
)

// FileStore keeps the last snapshot as a single JSON document in the legacy
// data-file layout (listings, departments, all_departments, page_hash,
// last_checked). Files written by either side load in the other.
type FileStore struct {
	Path string

	// RetryDelay is how often TryLockContext polls for the advisory lock.
	RetryDelay time.Duration
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, RetryDelay: 50 * time.Millisecond}
}

type fileListing struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Department *string `json:"department"`
}

type fileSnapshot struct {
	Listings        []fileListing `json:"listings"`
	Departments     orderedCounts `json:"departments"`
	AllDepartments  orderedCounts `json:"all_departments"`
	PageHash        string        `json:"page_hash,omitempty"`
	Count           int           `json:"count"`
	DepartmentCount int           `json:"department_count"`
	LastChecked     string        `json:"last_checked"`
}

// orderedCounts is a JSON object whose key order is significant.
type orderedCounts []domain.DepartmentCount

func (o orderedCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, dc := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, dc.Department); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(&buf, dc.Count); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // Encode appends a newline
	return nil
}

func (o *orderedCounts) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*o = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("departments: expected object")
	}
	var out orderedCounts
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var count string
		if err := json.Unmarshal(raw, &count); err != nil {
			// tolerate numeric counts
			count = string(bytes.TrimSpace(raw))
		}
		out = append(out, domain.DepartmentCount{Department: key, Count: count})
	}
	*o = out
	return nil
}

// Load returns the stored snapshot, or nil with no error when none exists yet.
func (s *FileStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if _, err := os.Stat(s.Path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	lock := flock.New(s.lockPath())
	ok, err := lock.TryRLockContext(ctx, s.retryDelay())
	if err != nil {
		return nil, fmt.Errorf("store: lock %s: %w", s.Path, err)
	}
	if ok {
		defer func() { _ = lock.Unlock() }()
	}

	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.Path, err)
	}

	var f fileSnapshot
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", s.Path, err)
	}

	postings := make([]domain.Posting, 0, len(f.Listings))
	for _, l := range f.Listings {
		p := domain.Posting{Title: l.Title, URL: l.URL}
		if l.Department != nil {
			p.Department = *l.Department
		}
		postings = append(postings, p)
	}

	snap := domain.NewSnapshot(postings, f.Departments, parseChecked(f.LastChecked))
	if len(f.AllDepartments) > 0 {
		snap.AllDepartmentCounts = f.AllDepartments
	}
	snap.PageHash = f.PageHash
	return &snap, nil
}

// Save replaces the stored snapshot. The new file is written next to the old
// one and renamed over it; the previous version is kept as Path+".bak".
func (s *FileStore) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}

	lock := flock.New(s.lockPath())
	ok, err := lock.TryLockContext(ctx, s.retryDelay())
	if err != nil {
		return fmt.Errorf("store: lock %s: %w", s.Path, err)
	}
	if !ok {
		return fmt.Errorf("store: %s is locked", s.Path)
	}
	defer func() { _ = lock.Unlock() }()

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toFile(snap)); err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	tmp := s.Path + ".tmp"
	bak := s.Path + ".bak"

	if err := os.WriteFile(tmp, body.Bytes(), 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}

	_ = os.Remove(bak)
	if err := os.Rename(s.Path, bak); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = os.Remove(tmp)
		return fmt.Errorf("store: backup: %w", err)
	}

	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("store: replace %s: %w", s.Path, err)
	}
	return nil
}

func toFile(snap domain.Snapshot) fileSnapshot {
	f := fileSnapshot{
		Listings:        make([]fileListing, 0, len(snap.Postings)),
		Departments:     orderedCounts(snap.DepartmentCounts),
		AllDepartments:  orderedCounts(snap.AllDepartmentCounts),
		PageHash:        snap.PageHash,
		Count:           len(snap.Postings),
		DepartmentCount: len(snap.DepartmentCounts),
		LastChecked:     snap.CapturedAt.Format(time.RFC3339),
	}
	if f.Departments == nil {
		f.Departments = orderedCounts{}
	}
	if f.AllDepartments == nil {
		f.AllDepartments = orderedCounts{}
	}
	for _, p := range snap.Postings {
		l := fileListing{Title: p.Title, URL: p.URL}
		if p.Department != "" {
			d := p.Department
			l.Department = &d
		}
		f.Listings = append(f.Listings, l)
	}
	return f
}

// parseChecked accepts RFC 3339 and the zone-less ISO timestamps older data
// files carry (read as local time).
func parseChecked(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}

func (s *FileStore) lockPath() string { return s.Path + ".lock" }

func (s *FileStore) retryDelay() time.Duration {
	if s.RetryDelay <= 0 {
		return 50 * time.Millisecond
	}
	return s.RetryDelay
}

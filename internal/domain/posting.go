package domain

import (
	"strings"
	"time"
)

// UnknownDepartment is the tag rendered for a posting whose department could
// not be inferred from the page.
const UnknownDepartment = "?"

type Posting struct {
	Title      string `json:"title"`
	Department string `json:"department"` // "" when unknown
	URL        string `json:"url"`
}

// DepartmentTag returns the department or the unknown placeholder.
func (p Posting) DepartmentTag() string {
	if strings.TrimSpace(p.Department) == "" {
		return UnknownDepartment
	}
	return p.Department
}

type DepartmentCount struct {
	Department string `json:"department"`
	Count      string `json:"count"` // as shown on the page, e.g. "3 Jobs"
}

// Snapshot is one captured listing. Titles are unique; order is the order the
// postings were observed in.
type Snapshot struct {
	Postings         []Posting         `json:"postings"`
	DepartmentCounts []DepartmentCount `json:"department_counts"`
	CapturedAt       time.Time         `json:"captured_at"`

	// AllDepartmentCounts lists every department on the page, monitored or
	// not. PageHash is the MD5 of the raw page. Neither takes part in diffing.
	AllDepartmentCounts []DepartmentCount `json:"all_department_counts,omitempty"`
	PageHash            string            `json:"page_hash,omitempty"`
}

// NewSnapshot builds a Snapshot, dropping postings with an empty title and
// collapsing duplicate titles (first occurrence wins).
func NewSnapshot(postings []Posting, counts []DepartmentCount, capturedAt time.Time) Snapshot {
	seen := make(map[string]bool, len(postings))
	out := make([]Posting, 0, len(postings))
	for _, p := range postings {
		p.Title = strings.TrimSpace(p.Title)
		p.Department = strings.TrimSpace(p.Department)
		p.URL = strings.TrimSpace(p.URL)
		if p.Title == "" || seen[p.Title] {
			continue
		}
		seen[p.Title] = true
		out = append(out, p)
	}

	var dc []DepartmentCount
	if len(counts) > 0 {
		dc = make([]DepartmentCount, len(counts))
		copy(dc, counts)
	}

	return Snapshot{
		Postings:         out,
		DepartmentCounts: dc,
		CapturedAt:       capturedAt,
	}
}

// Titles returns the set of posting titles.
func (s Snapshot) Titles() map[string]bool {
	m := make(map[string]bool, len(s.Postings))
	for _, p := range s.Postings {
		m[p.Title] = true
	}
	return m
}

func (s Snapshot) Len() int { return len(s.Postings) }

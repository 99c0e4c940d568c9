package source

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"time"

	"careerwatch/internal/domain"
)

// ErrStructure means the page loaded but the expected job board markup was
// not there. It is treated like any other fetch failure.
var ErrStructure = errors.New("expected page structure not found")

// Page is everything a source read from the careers page, before filtering to
// the monitored departments.
type Page struct {
	URL         string
	Postings    []domain.Posting
	Departments []domain.DepartmentCount // every department on the page, page order
	Hash        string                   // hex MD5 of the raw page body
}

// HashReader wraps r so that everything read through it is hashed. Sum
// returns the hex digest of the bytes read so far.
type HashReader struct {
	r io.Reader
	h hash.Hash
}

func NewHashReader(r io.Reader) *HashReader {
	h := md5.New()
	return &HashReader{r: io.TeeReader(r, h), h: h}
}

func (hr *HashReader) Read(p []byte) (int, error) { return hr.r.Read(p) }

func (hr *HashReader) Sum() string { return hex.EncodeToString(hr.h.Sum(nil)) }

type Source interface {
	Name() string
	Fetch(ctx context.Context) (Page, error)
}

// Filter keeps the postings whose department is exactly one of departments
// and the counts of those departments, in the configured order. Every page
// department count and the page hash are carried over unfiltered.
func Filter(page Page, departments []string, capturedAt time.Time) domain.Snapshot {
	monitored := make(map[string]bool, len(departments))
	for _, d := range departments {
		monitored[d] = true
	}

	var keep []domain.Posting
	for _, p := range page.Postings {
		if monitored[p.Department] {
			keep = append(keep, p)
		}
	}

	byName := make(map[string]string, len(page.Departments))
	for _, dc := range page.Departments {
		if _, ok := byName[dc.Department]; !ok {
			byName[dc.Department] = dc.Count
		}
	}
	var counts []domain.DepartmentCount
	for _, d := range departments {
		if c, ok := byName[d]; ok {
			counts = append(counts, domain.DepartmentCount{Department: d, Count: c})
		}
	}

	snap := domain.NewSnapshot(keep, counts, capturedAt)
	if len(page.Departments) > 0 {
		snap.AllDepartmentCounts = append([]domain.DepartmentCount(nil), page.Departments...)
	}
	snap.PageHash = page.Hash
	return snap
}

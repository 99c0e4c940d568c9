// Package diff compares two snapshots by posting title.
package diff

import "careerwatch/internal/domain"

// Compute returns the postings of current whose title is missing from
// previous (Added) and the postings of previous whose title is missing from
// current (Removed). Each side keeps the order of its source snapshot.
//
// Callers that have no previous snapshot must not call Compute: a first run
// has nothing to compare against and reports no changes section at all.
func Compute(previous, current domain.Snapshot) domain.Diff {
	prevTitles := previous.Titles()
	curTitles := current.Titles()

	d := domain.Diff{
		Added:   []domain.Posting{},
		Removed: []domain.Posting{},
	}
	for _, p := range current.Postings {
		if !prevTitles[p.Title] {
			d.Added = append(d.Added, p)
		}
	}
	for _, p := range previous.Postings {
		if !curTitles[p.Title] {
			d.Removed = append(d.Removed, p)
		}
	}
	return d
}

// Against diffs current against an optional previous snapshot. It returns
// nil when previous is nil or holds no postings, so the report omits the
// changes section instead of listing every current posting as new.
func Against(previous *domain.Snapshot, current domain.Snapshot) *domain.Diff {
	if previous == nil || previous.Len() == 0 {
		return nil
	}
	d := Compute(*previous, current)
	return &d
}

// Package report renders a snapshot and an optional diff into the plain-text
// report that is printed to the terminal and used as the email body.
package report

import (
	"fmt"
	"strings"
	"time"

	"careerwatch/internal/domain"
)

const ruleWidth = 70

// Scope describes what is being monitored. It is printed in the header and
// decides which URLs are generic enough to hide.
type Scope struct {
	Company     string
	CareersURL  string
	Departments []string
}

type Renderer struct {
	Scope Scope
	Now   func() time.Time
}

func New(scope Scope) *Renderer {
	return &Renderer{Scope: scope, Now: time.Now}
}

// HasNew reports whether the diff contains new postings. A nil diff (first
// run) never counts as new.
func HasNew(d *domain.Diff) bool {
	return d != nil && d.HasAdded()
}

// Render builds the report. Section order and presence rules are fixed:
// header, changes (only when d != nil), department counts (when known),
// listings or the "none found" notice, footer.
func (r *Renderer) Render(cur domain.Snapshot, d *domain.Diff) string {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	rule := strings.Repeat("=", ruleWidth)

	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("\n%s", rule)
	if r.Scope.Company != "" {
		add("📋 CURRENT JOB LISTINGS - %s Careers", r.Scope.Company)
	} else {
		add("📋 CURRENT JOB LISTINGS")
	}
	add("🎯 Monitoring: %s", strings.Join(r.Scope.Departments, ", "))
	add("Time: %s", now().Format("2006-01-02 15:04:05"))
	add("%s", rule)

	if d != nil {
		if d.Empty() {
			add("\n📌 No changes since last run (same listings as last snapshot).\n")
		} else {
			add("\n📌 CHANGES SINCE LAST RUN:\n")
			if len(d.Added) > 0 {
				add("   ✨ NEW OPENINGS (%d):", len(d.Added))
				for _, p := range d.Added {
					r.changeLines(&lines, p)
				}
				add("")
			}
			if len(d.Removed) > 0 {
				add("   ❌ REMOVED / FILLED (%d):", len(d.Removed))
				for _, p := range d.Removed {
					r.changeLines(&lines, p)
				}
				add("")
			}
		}
	}

	if len(cur.DepartmentCounts) > 0 {
		add("\n📂 MONITORED DEPARTMENTS (%d total):\n", len(cur.DepartmentCounts))
		for _, dc := range cur.DepartmentCounts {
			add("   • %s: %s", dc.Department, dc.Count)
		}
	}

	if len(cur.Postings) > 0 {
		add("\n💼 OPEN POSITIONS IN MONITORED DEPARTMENTS (%d total):\n", len(cur.Postings))
		for i, p := range cur.Postings {
			add("%d. %s [%s]", i+1, p.Title, p.DepartmentTag())
			if r.showURL(p.URL) {
				add("   🔗 %s", p.URL)
			}
			add("")
		}
	} else {
		add("\n⚠️  No job listings found in monitored departments.")
		add("   Visit the careers page directly: %s\n", r.Scope.CareersURL)
	}

	if !cur.CapturedAt.IsZero() {
		add("Last checked: %s", cur.CapturedAt.Format(time.RFC3339))
	}
	add("%s\n", rule)

	return strings.Join(lines, "\n")
}

func (r *Renderer) changeLines(lines *[]string, p domain.Posting) {
	*lines = append(*lines, fmt.Sprintf("      • %s [%s]", p.Title, p.DepartmentTag()))
	if r.showURL(p.URL) {
		*lines = append(*lines, fmt.Sprintf("        🔗 %s", p.URL))
	}
}

// showURL hides empty URLs and the generic careers page itself.
func (r *Renderer) showURL(u string) bool {
	u = strings.TrimSpace(u)
	if u == "" {
		return false
	}
	return strings.TrimRight(u, "/") != strings.TrimRight(strings.TrimSpace(r.Scope.CareersURL), "/")
}

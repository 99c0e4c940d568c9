// Package careers parses a rendered careers page that embeds a Lever job
// table grouped into department accordions.
package careers

import (
	"fmt"
	"io"
	"strings"

	"careerwatch/internal/domain"
	"careerwatch/internal/source"
	"careerwatch/internal/source/util"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locate the job table. The class names are CSS-module hashes and
// change when the site is redeployed, so they are configurable.
type Selectors struct {
	Container       string `yaml:"container"`
	Header          string `yaml:"header"`
	DepartmentName  string `yaml:"department_name"`
	DepartmentCount string `yaml:"department_count"`
	JobCell         string `yaml:"job_cell"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Container:       "#lever-integration-table",
		Header:          ".accordion-table_accordion-table__header__VM2KA",
		DepartmentName:  ".text_text--size-lg__uWJQC",
		DepartmentCount: ".text_text--size-md__z_JDN",
		JobCell:         "span.accordion-table_table__cell__puVO3.accordion-table_table__cell--first__vBzOR",
	}
}

// WithDefaults fills empty selectors from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	if s.Container == "" {
		s.Container = d.Container
	}
	if s.Header == "" {
		s.Header = d.Header
	}
	if s.DepartmentName == "" {
		s.DepartmentName = d.DepartmentName
	}
	if s.DepartmentCount == "" {
		s.DepartmentCount = d.DepartmentCount
	}
	if s.JobCell == "" {
		s.JobCell = d.JobCell
	}
	return s
}

// location and work-mode cells share the job cell class on some rows
var skipWords = map[string]bool{
	"doha": true, "boston": true, "onsite": true, "remote": true,
	"hybrid": true, "flex": true, "location": true,
}

const (
	minTitleLen   = 6
	maxClimbDepth = 10
)

type Parser struct {
	Sel Selectors
}

func NewParser(sel Selectors) Parser {
	return Parser{Sel: sel.WithDefaults()}
}

// Parse reads the page with the default selectors.
func Parse(r io.Reader, pageURL string) (source.Page, error) {
	return NewParser(Selectors{}).Parse(r, pageURL)
}

func (p Parser) Parse(r io.Reader, pageURL string) (source.Page, error) {
	sel := p.Sel.WithDefaults()

	hr := source.NewHashReader(r)
	doc, err := goquery.NewDocumentFromReader(hr)
	if err != nil {
		return source.Page{}, fmt.Errorf("careers: parse html: %w", err)
	}

	if doc.Find(sel.Container).Length() == 0 {
		return source.Page{}, fmt.Errorf("careers: %s missing: %w", sel.Container, source.ErrStructure)
	}

	page := source.Page{URL: pageURL, Hash: hr.Sum()}

	headers := doc.Find(sel.Header)
	if headers.Length() == 0 {
		return source.Page{}, fmt.Errorf("careers: no department headers: %w", source.ErrStructure)
	}
	headers.Each(func(_ int, h *goquery.Selection) {
		name := util.CleanText(h.Find(sel.DepartmentName).First().Text())
		if name == "" {
			return
		}
		count := util.CleanText(h.Find(sel.DepartmentCount).First().Text())
		page.Departments = append(page.Departments, domain.DepartmentCount{Department: name, Count: count})
	})

	seen := map[string]bool{}
	doc.Find(sel.JobCell).Each(func(_ int, cell *goquery.Selection) {
		title := jobTitle(cell)
		if skipTitle(title) || seen[title] {
			return
		}
		seen[title] = true

		page.Postings = append(page.Postings, domain.Posting{
			Title:      title,
			Department: department(cell, sel),
			URL:        jobURL(cell, pageURL),
		})
	})

	return page, nil
}

func jobTitle(cell *goquery.Selection) string {
	if t := util.CleanText(cell.Text()); t != "" {
		return t
	}
	var title string
	cell.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := util.CleanText(s.Text()); len(t) >= minTitleLen {
			title = t
			return false
		}
		return true
	})
	return title
}

func skipTitle(t string) bool {
	if len(t) < minTitleLen {
		return true
	}
	l := strings.ToLower(t)
	return skipWords[l] || strings.HasPrefix(l, "location")
}

// department climbs from the job cell to the closest ancestor that holds a
// department header. An ancestor holding several headers spans more than one
// section, so the department is unknown ("") rather than guessed.
func department(cell *goquery.Selection, sel Selectors) string {
	nameSel := sel.Header + " " + sel.DepartmentName
	parent := cell.Parent()
	for i := 0; i < maxClimbDepth && parent.Length() > 0; i++ {
		switch names := parent.Find(nameSel); names.Length() {
		case 0:
			parent = parent.Parent()
			continue
		case 1:
			return util.CleanText(names.Text())
		default:
			return ""
		}
	}
	return ""
}

// jobURL returns the href of the enclosing link, or the careers page itself.
func jobURL(cell *goquery.Selection, pageURL string) string {
	if href, ok := cell.Closest("a").Attr("href"); ok {
		if u := util.ResolveURL(pageURL, href); u != "" {
			return u
		}
	}
	return pageURL
}

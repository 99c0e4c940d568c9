package diff

import (
	"testing"
	"time"

	"careerwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(postings ...domain.Posting) domain.Snapshot {
	return domain.NewSnapshot(postings, nil, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func titles(ps []domain.Posting) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Title)
	}
	return out
}

func TestCompute_AddedPosting(t *testing.T) {
	prev := snap(domain.Posting{Title: "Research Scientist", Department: "Performance Science"})
	cur := snap(
		domain.Posting{Title: "Research Scientist", Department: "Performance Science"},
		domain.Posting{Title: "Data Analyst", Department: "Data Science & Research"},
	)

	d := Compute(prev, cur)

	assert.Equal(t, []string{"Data Analyst"}, titles(d.Added))
	assert.Empty(t, d.Removed)
}

func TestCompute_AllRemoved(t *testing.T) {
	prev := snap(
		domain.Posting{Title: "Research Scientist"},
		domain.Posting{Title: "Data Analyst"},
	)
	cur := snap()

	d := Compute(prev, cur)

	assert.Empty(t, d.Added)
	assert.Equal(t, []string{"Research Scientist", "Data Analyst"}, titles(d.Removed))
}

func TestCompute_SameSnapshotIsEmpty(t *testing.T) {
	a := snap(
		domain.Posting{Title: "A"},
		domain.Posting{Title: "B"},
	)
	d := Compute(a, a)

	assert.True(t, d.Empty())
	assert.NotNil(t, d.Added)
	assert.NotNil(t, d.Removed)
}

func TestCompute_MatchesByTitleOnly(t *testing.T) {
	prev := snap(domain.Posting{Title: "A", Department: "X", URL: "https://a/1"})
	cur := snap(domain.Posting{Title: "A", Department: "Y", URL: "https://a/2"})

	assert.True(t, Compute(prev, cur).Empty())
}

func TestCompute_PreservesSourceOrder(t *testing.T) {
	prev := snap(
		domain.Posting{Title: "keep"},
		domain.Posting{Title: "gone-2"},
		domain.Posting{Title: "gone-1"},
	)
	cur := snap(
		domain.Posting{Title: "new-z"},
		domain.Posting{Title: "keep"},
		domain.Posting{Title: "new-a"},
	)

	d := Compute(prev, cur)

	assert.Equal(t, []string{"new-z", "new-a"}, titles(d.Added))
	assert.Equal(t, []string{"gone-2", "gone-1"}, titles(d.Removed))
}

func TestCompute_SetDifferenceProperty(t *testing.T) {
	cases := []struct {
		name string
		a, b []string
	}{
		{"disjoint", []string{"a", "b"}, []string{"c"}},
		{"overlap", []string{"a", "b", "c"}, []string{"b", "c", "d"}},
		{"empty previous", nil, []string{"x"}},
		{"empty both", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var pa, pb []domain.Posting
			for _, s := range tc.a {
				pa = append(pa, domain.Posting{Title: s})
			}
			for _, s := range tc.b {
				pb = append(pb, domain.Posting{Title: s})
			}
			A, B := snap(pa...), snap(pb...)
			d := Compute(A, B)

			inA, inB := A.Titles(), B.Titles()
			for _, p := range d.Added {
				assert.True(t, inB[p.Title])
				assert.False(t, inA[p.Title])
			}
			for _, p := range d.Removed {
				assert.True(t, inA[p.Title])
				assert.False(t, inB[p.Title])
			}

			var wantAdded, wantRemoved int
			for title := range inB {
				if !inA[title] {
					wantAdded++
				}
			}
			for title := range inA {
				if !inB[title] {
					wantRemoved++
				}
			}
			assert.Len(t, d.Added, wantAdded)
			assert.Len(t, d.Removed, wantRemoved)
		})
	}
}

func TestAgainst_NoPreviousSkipsDiff(t *testing.T) {
	cur := snap(domain.Posting{Title: "a"}, domain.Posting{Title: "b"}, domain.Posting{Title: "c"})

	assert.Nil(t, Against(nil, cur))

	empty := snap()
	assert.Nil(t, Against(&empty, cur))

	prev := snap(domain.Posting{Title: "a"})
	d := Against(&prev, cur)
	require.NotNil(t, d)
	assert.Equal(t, []string{"b", "c"}, titles(d.Added))
}

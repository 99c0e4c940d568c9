package domain

// Diff is the title-keyed set difference between two snapshots.
type Diff struct {
	Added   []Posting `json:"added"`
	Removed []Posting `json:"removed"`
}

func (d Diff) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

func (d Diff) HasAdded() bool { return len(d.Added) > 0 }

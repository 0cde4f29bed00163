package plan

import (
	"sort"
	"time"
)

// TimeLayout is the naive local timestamp layout used in plan files.
const TimeLayout = "2006-01-02 15:04:05"

// titlePrefix starts the optional first element line.
const titlePrefix = "0 "

// Entry is one scheduled target.
type Entry struct {
	BeginLocal time.Time
	EndLocal   time.Time
	Name       string

	// TLELine1 is the title line ("0 NAME"). TLELine2 and TLELine3 are the
	// numeric element lines, passed through untouched.
	TLELine1 string
	TLELine2 string
	TLELine3 string
}

// Elements returns the three element lines in mount order.
func (e Entry) Elements() (string, string, string) {
	l1 := e.TLELine1
	if l1 == "" {
		l1 = titlePrefix + e.Name
	}
	return l1, e.TLELine2, e.TLELine3
}

// Duration is the length of the observation window.
func (e Entry) Duration() time.Duration {
	return e.EndLocal.Sub(e.BeginLocal)
}

// Plan is an ordered list of entries, ascending by BeginLocal.
// An empty plan is valid and means there is nothing to observe.
type Plan struct {
	Entries []Entry
}

// Len returns the number of entries.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Entries)
}

// IsEmpty reports whether the plan has no entries.
func (p *Plan) IsEmpty() bool {
	return p.Len() == 0
}

func (p *Plan) sort() {
	sort.SliceStable(p.Entries, func(i, j int) bool {
		return p.Entries[i].BeginLocal.Before(p.Entries[j].BeginLocal)
	})
}

// Candidate is a visibility window produced by the planning stage before
// filtering. A target may contribute several candidates.
type Candidate struct {
	TargetID string

	// Elements holds the three element lines (title, line 1, line 2).
	Elements [3]string

	Start time.Time
	End   time.Time
}

package plan

import (
	"sort"
	"time"
)

// Filter selects non-conflicting windows greedily by earliest start.
//
// Candidates are stably sorted by Start. The first is kept; each later one is
// kept only if it starts at least minGap after the end of the last kept
// window. This favours early windows and does not try to maximise the number
// kept. The result is a subsequence of the sorted input, and filtering it
// again returns it unchanged. A negative minGap is treated as zero.
func Filter(cands []Candidate, minGap time.Duration) []Candidate {
	if len(cands) == 0 {
		return nil
	}
	if minGap < 0 {
		minGap = 0
	}

	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	kept := []Candidate{sorted[0]}
	for _, c := range sorted[1:] {
		last := kept[len(kept)-1]
		if !c.Start.Before(last.End.Add(minGap)) {
			kept = append(kept, c)
		}
	}
	return kept
}

// Narrow shrinks c to halfWidth either side of its midpoint, never beyond
// the original window. halfWidth <= 0 keeps the full window.
func Narrow(c Candidate, halfWidth time.Duration) Candidate {
	if halfWidth <= 0 {
		return c
	}
	mid := c.Start.Add(c.End.Sub(c.Start) / 2)

	start := mid.Add(-halfWidth)
	if start.Before(c.Start) {
		start = c.Start
	}
	end := mid.Add(halfWidth)
	if end.After(c.End) {
		end = c.End
	}

	c.Start, c.End = start, end
	return c
}

// FromCandidates converts windows into a plan in the given zone. Windows
// with Start not before End are dropped.
func FromCandidates(cands []Candidate, loc *time.Location) *Plan {
	if loc == nil {
		loc = time.Local
	}
	p := &Plan{Entries: make([]Entry, 0, len(cands))}
	for _, c := range cands {
		if !c.Start.Before(c.End) {
			continue
		}
		title := c.Elements[0]
		if title == "" {
			title = titlePrefix + c.TargetID
		}
		p.Entries = append(p.Entries, Entry{
			BeginLocal: c.Start.In(loc),
			EndLocal:   c.End.In(loc),
			Name:       c.TargetID,
			TLELine1:   title,
			TLELine2:   c.Elements[1],
			TLELine3:   c.Elements[2],
		})
	}
	p.sort()
	return p
}

// ToCandidates turns plan entries back into windows, for re-filtering a
// hand-edited plan.
func ToCandidates(p *Plan) []Candidate {
	cands := make([]Candidate, 0, p.Len())
	for _, e := range p.Entries {
		l1, l2, l3 := e.Elements()
		cands = append(cands, Candidate{
			TargetID: e.Name,
			Elements: [3]string{l1, l2, l3},
			Start:    e.BeginLocal,
			End:      e.EndLocal,
		})
	}
	return cands
}

// Build applies the planning-stage policy: Filter with minGap, Narrow each
// kept window to halfWidth, and convert to a plan.
func Build(cands []Candidate, minGap, halfWidth time.Duration, loc *time.Location) *Plan {
	kept := Filter(cands, minGap)
	for i := range kept {
		kept[i] = Narrow(kept[i], halfWidth)
	}
	return FromCandidates(kept, loc)
}

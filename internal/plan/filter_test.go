package plan

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"
)

var t0 = time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)

func window(id string, startMin, endMin int) Candidate {
	return Candidate{
		TargetID: id,
		Elements: [3]string{"0 " + id, "1 " + id, "2 " + id},
		Start:    t0.Add(time.Duration(startMin) * time.Minute),
		End:      t0.Add(time.Duration(endMin) * time.Minute),
	}
}

func ids(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.TargetID
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		cands  []Candidate
		minGap time.Duration
		want   []string
	}{
		{name: "empty", cands: nil, minGap: time.Minute, want: []string{}},
		{
			name:   "unsorted input sorted by start",
			cands:  []Candidate{window("C", 20, 25), window("A", 0, 5), window("B", 10, 15)},
			minGap: time.Minute,
			want:   []string{"A", "B", "C"},
		},
		{
			name:   "overlap drops later start",
			cands:  []Candidate{window("A", 0, 10), window("B", 5, 8), window("C", 11, 12)},
			minGap: time.Minute,
			want:   []string{"A", "C"},
		},
		{
			name:   "exactly min gap kept",
			cands:  []Candidate{window("A", 0, 5), window("B", 6, 8)},
			minGap: time.Minute,
			want:   []string{"A", "B"},
		},
		{
			name:   "short of min gap dropped",
			cands:  []Candidate{window("A", 0, 5), window("B", 5, 8)},
			minGap: time.Minute,
			want:   []string{"A"},
		},
		{
			name:   "zero gap allows touching windows",
			cands:  []Candidate{window("A", 0, 5), window("B", 5, 8)},
			minGap: 0,
			want:   []string{"A", "B"},
		},
		{
			// Greedy earliest start keeps the long window even though two
			// short ones would fit in its place.
			name:   "greedy not optimal",
			cands:  []Candidate{window("LONG", 0, 30), window("S1", 1, 5), window("S2", 10, 15)},
			minGap: time.Minute,
			want:   []string{"LONG"},
		},
		{
			name:   "equal start keeps input order",
			cands:  []Candidate{window("first", 0, 5), window("second", 0, 3)},
			minGap: 0,
			want:   []string{"first"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Filter(tt.cands, tt.minGap))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	in := []Candidate{window("B", 10, 15), window("A", 0, 5)}
	Filter(in, time.Minute)
	if in[0].TargetID != "B" {
		t.Error("Filter() reordered its input")
	}
}

func TestFilter_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) //nolint:gosec // deterministic test data

	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		cands := make([]Candidate, n)
		for i := range cands {
			start := rng.Intn(600)
			cands[i] = window(string(rune('A'+i%26)), start, start+1+rng.Intn(20))
		}
		minGap := time.Duration(rng.Intn(5)) * time.Minute

		got := Filter(cands, minGap)

		for i := 1; i < len(got); i++ {
			if got[i].Start.Before(got[i-1].End.Add(minGap)) {
				t.Fatalf("round %d: windows %d and %d closer than %v", round, i-1, i, minGap)
			}
		}

		sorted := make([]Candidate, len(cands))
		copy(sorted, cands)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
		if !isSubsequence(got, sorted) {
			t.Fatalf("round %d: output is not a subsequence of the sorted input", round)
		}

		again := Filter(got, minGap)
		if len(got) > 0 && !reflect.DeepEqual(again, got) {
			t.Fatalf("round %d: Filter is not idempotent", round)
		}
	}
}

func isSubsequence(sub, full []Candidate) bool {
	j := 0
	for _, c := range full {
		if j < len(sub) && reflect.DeepEqual(c, sub[j]) {
			j++
		}
	}
	return j == len(sub)
}

func TestNarrow(t *testing.T) {
	c := window("A", 0, 10) // midpoint at 5m

	tests := []struct {
		name      string
		halfWidth time.Duration
		wantStart time.Duration
		wantEnd   time.Duration
	}{
		{"full window", 0, 0, 10 * time.Minute},
		{"negative is full", -time.Minute, 0, 10 * time.Minute},
		{"two minutes", 2 * time.Minute, 3 * time.Minute, 7 * time.Minute},
		{"wider than window clamps", 30 * time.Minute, 0, 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Narrow(c, tt.halfWidth)
			if got.Start.Sub(t0) != tt.wantStart || got.End.Sub(t0) != tt.wantEnd {
				t.Errorf("Narrow() = [%v, %v], want [%v, %v]",
					got.Start.Sub(t0), got.End.Sub(t0), tt.wantStart, tt.wantEnd)
			}
			if got.TargetID != c.TargetID || got.Elements != c.Elements {
				t.Error("Narrow() changed target data")
			}
		})
	}
}

func TestBuild(t *testing.T) {
	loc := time.FixedZone("MST", -7*60*60)
	cands := []Candidate{
		window("B", 20, 30),
		window("A", 0, 10),
		window("A", 5, 12), // overlaps A
		{TargetID: "bad", Start: t0.Add(time.Hour), End: t0.Add(time.Hour)},
	}

	p := Build(cands, time.Minute, 2*time.Minute, loc)

	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (%+v)", p.Len(), p.Entries)
	}
	a := p.Entries[0]
	if a.Name != "A" || a.TLELine1 != "0 A" || a.TLELine2 != "1 A" || a.TLELine3 != "2 A" {
		t.Errorf("entry A = %+v", a)
	}
	if !a.BeginLocal.Equal(t0.Add(3*time.Minute)) || !a.EndLocal.Equal(t0.Add(7*time.Minute)) {
		t.Errorf("entry A window = [%v, %v]", a.BeginLocal, a.EndLocal)
	}
	if a.BeginLocal.Location() != loc {
		t.Errorf("entry zone = %v, want %v", a.BeginLocal.Location(), loc)
	}

	back := ToCandidates(p)
	if len(back) != 2 || back[1].TargetID != "B" || back[1].Elements[0] != "0 B" {
		t.Errorf("ToCandidates() = %+v", back)
	}
}

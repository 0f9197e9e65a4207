package rank

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/wfunc/gamerisk/models"
)

func TestRank_EmptyPopulation(t *testing.T) {
	if _, err := Rank(nil); !errors.Is(err, ErrEmptyPopulation) {
		t.Errorf("expected ErrEmptyPopulation, got %v", err)
	}
	if _, err := Rank([]Observation{}); !errors.Is(err, ErrEmptyPopulation) {
		t.Errorf("expected ErrEmptyPopulation for empty slice, got %v", err)
	}
}

func TestRank_InvalidPercentile(t *testing.T) {
	r, err := Rank([]Observation{{ID: "a", Value: 1}})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	for _, k := range []float64{0, -5, 100.1, 500} {
		if _, err := r.TopKPercent(k); !errors.Is(err, ErrInvalidPercentile) {
			t.Errorf("k=%v: expected ErrInvalidPercentile, got %v", k, err)
		}
	}
}

func TestRank_DuplicateID(t *testing.T) {
	_, err := Rank([]Observation{{ID: "a", Value: 1}, {ID: "a", Value: 2}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

// Top third of spends [100, 50, 10] is exactly the single highest spender.
func TestTopKPercent_TopThirdScenario(t *testing.T) {
	pop := []Observation{
		{ID: "1", Value: 100},
		{ID: "2", Value: 50},
		{ID: "3", Value: 10},
	}
	r, err := Rank(pop)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	top, err := r.TopKPercent(34)
	if err != nil {
		t.Fatalf("TopKPercent failed: %v", err)
	}
	if len(top) != 1 || !top["1"] {
		t.Errorf("top 34%% of [100,50,10]: expected {1}, got %v", top)
	}
}

func TestTopKPercent_FullPopulationAt100(t *testing.T) {
	pop := []Observation{
		{ID: "a", Value: 3}, {ID: "b", Value: 3}, {ID: "c", Value: 1},
		{ID: "d", Value: 0}, {ID: "e", Value: 7},
	}
	r, err := Rank(pop)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	top, err := r.TopKPercent(100)
	if err != nil {
		t.Fatalf("TopKPercent(100) failed: %v", err)
	}
	if len(top) != len(pop) {
		t.Errorf("top 100%% should be the whole population, got %d of %d", len(top), len(pop))
	}
}

func TestTopKPercent_MonotonicInK(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pop := make([]Observation, 50)
	for i := range pop {
		pop[i] = Observation{ID: string(rune('A' + i%26)) + string(rune('a' + i/26)), Value: float64(rng.Intn(20))}
	}
	r, err := Rank(pop)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	prev := map[string]bool{}
	for k := 5.0; k <= 100; k += 5 {
		cur, err := r.TopKPercent(k)
		if err != nil {
			t.Fatalf("TopKPercent(%v) failed: %v", k, err)
		}
		for id := range prev {
			if !cur[id] {
				t.Fatalf("monotonicity violated: %s in top %v%% but not top %v%%", id, k-5, k)
			}
		}
		prev = cur
	}
}

// Tied values always share a rank and are never split across a cohort cutoff.
func TestRank_TieInvariants(t *testing.T) {
	pop := []Observation{
		{ID: "w", Value: 100},
		{ID: "x", Value: 100},
		{ID: "y", Value: 10},
		{ID: "z", Value: 10},
	}
	r, err := Rank(pop)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	rw, _ := r.Rank("w")
	rx, _ := r.Rank("x")
	if rw != rx {
		t.Errorf("tied records got different ranks: %v vs %v", rw, rx)
	}
	if rw != 1.0 {
		t.Errorf("best tie group should share rank 1.0, got %v", rw)
	}

	// A 25% cut lands inside the {w,x} group: both must be included.
	top, err := r.TopKPercent(25)
	if err != nil {
		t.Fatalf("TopKPercent failed: %v", err)
	}
	if !top["w"] || !top["x"] {
		t.Errorf("cutoff split a tie group: got %v", top)
	}
	if top["y"] || top["z"] {
		t.Errorf("lower tie group leaked into the cohort: got %v", top)
	}
}

func TestRank_HighestGetsOne(t *testing.T) {
	pop := []Observation{
		{ID: "low", Value: 1}, {ID: "mid", Value: 5}, {ID: "high", Value: 9},
	}
	r, err := Rank(pop)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	cases := map[string]float64{"high": 1.0, "mid": 2.0 / 3.0, "low": 1.0 / 3.0}
	for id, want := range cases {
		got, ok := r.Rank(id)
		if !ok {
			t.Fatalf("Rank(%s) not found", id)
		}
		if got != want {
			t.Errorf("Rank(%s) = %v, want %v", id, got, want)
		}
	}
	if _, ok := r.Rank("ghost"); ok {
		t.Error("Rank of unknown id should report not found")
	}
}

// Ranking a filtered sub-population is independent of the full-population pass.
func TestRank_SubPopulation(t *testing.T) {
	full := []Observation{
		{ID: "a", Value: 10}, {ID: "b", Value: 8},
		{ID: "c", Value: 6}, {ID: "d", Value: 4},
	}
	sub := full[2:]

	rFull, err := Rank(full)
	if err != nil {
		t.Fatalf("Rank(full) failed: %v", err)
	}
	rSub, err := Rank(sub)
	if err != nil {
		t.Fatalf("Rank(sub) failed: %v", err)
	}

	if got, _ := rFull.Rank("c"); got != 0.5 {
		t.Errorf("c in full population: expected 0.5, got %v", got)
	}
	if got, _ := rSub.Rank("c"); got != 1.0 {
		t.Errorf("c in sub-population: expected 1.0, got %v", got)
	}
}

func TestRank_InputOrderIndependent(t *testing.T) {
	a := []Observation{{ID: "p", Value: 2}, {ID: "q", Value: 2}, {ID: "r", Value: 9}}
	b := []Observation{{ID: "r", Value: 9}, {ID: "q", Value: 2}, {ID: "p", Value: 2}}

	ra, err := Rank(a)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	rb, err := Rank(b)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	for _, id := range []string{"p", "q", "r"} {
		va, _ := ra.Rank(id)
		vb, _ := rb.Rank(id)
		if va != vb {
			t.Errorf("rank of %s depends on input order: %v vs %v", id, va, vb)
		}
	}
}

func TestRankRecords_ByMetric(t *testing.T) {
	recs := []models.GamerRecord{
		{ID: "1", MonthlySpending: 100},
		{ID: "2", MonthlySpending: 50},
		{ID: "3", MonthlySpending: 10},
	}

	top, err := TopKPercentRecords(recs, models.MetricMonthlySpending, 34)
	if err != nil {
		t.Fatalf("TopKPercentRecords failed: %v", err)
	}
	if len(top) != 1 || !top["1"] {
		t.Errorf("expected {1}, got %v", top)
	}

	if _, err := RankRecords(recs, "no_such_metric"); !errors.Is(err, models.ErrUnknownMetric) {
		t.Errorf("expected ErrUnknownMetric, got %v", err)
	}
}

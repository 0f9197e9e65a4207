// rank/rank.go
package rank

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wfunc/gamerisk/models"
)

var (
	ErrEmptyPopulation   = errors.New("empty population")
	ErrInvalidPercentile = errors.New("percentile out of range (0,100]")
	ErrDuplicateID       = errors.New("duplicate id in population")
)

// Observation 一条带ID的指标观测值
type Observation struct {
	ID    string
	Value float64
}

// Ranking is one sorted pass over a population for a single metric.
//
// Records are ordered by value descending (id ascending within a tie group,
// which only fixes iteration order and never affects rank values). Every
// member of a tie group shares the group's best 1-based position, so two
// records with the same value always carry the same rank and a cohort cutoff
// can never split a tie group: when the cutoff lands inside a group, the
// whole group is included.
type Ranking struct {
	ordered []Observation
	bestPos map[string]int
	n       int
}

// Rank computes a Ranking over a non-empty population. Re-ranking a filtered
// sub-population is just another Rank call over the filtered slice; nothing
// here depends on a prior whole-population pass.
// Cost is O(n log n) per invocation.
func Rank(population []Observation) (*Ranking, error) {
	n := len(population)
	if n == 0 {
		return nil, ErrEmptyPopulation
	}

	ordered := make([]Observation, n)
	copy(ordered, population)
	for _, o := range ordered {
		if math.IsNaN(o.Value) {
			return nil, fmt.Errorf("%w: observation %s is NaN", models.ErrInvalidMetric, o.ID)
		}
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Value != ordered[j].Value {
			return ordered[i].Value > ordered[j].Value
		}
		return ordered[i].ID < ordered[j].ID
	})

	bestPos := make(map[string]int, n)
	groupStart := 1
	for i, o := range ordered {
		if i > 0 && o.Value != ordered[i-1].Value {
			groupStart = i + 1
		}
		if _, seen := bestPos[o.ID]; seen {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, o.ID)
		}
		bestPos[o.ID] = groupStart
	}

	return &Ranking{ordered: ordered, bestPos: bestPos, n: n}, nil
}

// RankRecords ranks a record batch by the named metric.
func RankRecords(recs []models.GamerRecord, metric models.Metric) (*Ranking, error) {
	obs := make([]Observation, 0, len(recs))
	for i := range recs {
		v, err := recs[i].Metric(metric)
		if err != nil {
			return nil, err
		}
		obs = append(obs, Observation{ID: recs[i].ID, Value: v})
	}
	return Rank(obs)
}

// Len returns the population size.
func (r *Ranking) Len() int {
	return r.n
}

// Rank returns the record's percentile rank in (0, 1], where 1.0 is the
// highest value. With f the tie group's best position, the rank is
// (n-f+1)/n, so all tied records share the rank of the best position in
// their group.
func (r *Ranking) Rank(id string) (float64, bool) {
	f, ok := r.bestPos[id]
	if !ok {
		return 0, false
	}
	return float64(r.n-f+1) / float64(r.n), true
}

// Ranks returns the full id -> rank mapping.
func (r *Ranking) Ranks() map[string]float64 {
	out := make(map[string]float64, r.n)
	for id, f := range r.bestPos {
		out[id] = float64(r.n-f+1) / float64(r.n)
	}
	return out
}

// TopKPercent returns the ids whose tie-group best position f lies within the
// top k percent of the population: 100*f <= k*n. The comparison stays on
// whole positions so no float rounding can flip membership, k=100 always
// yields the full population, and a tie group at the boundary value is
// included as a whole rather than silently cut.
func (r *Ranking) TopKPercent(k float64) (map[string]bool, error) {
	if math.IsNaN(k) || k <= 0 || k > 100 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPercentile, k)
	}
	out := make(map[string]bool)
	for _, o := range r.ordered {
		// bestPos is non-decreasing in this order; past the cut, done.
		if float64(100*r.bestPos[o.ID]) > k*float64(r.n) {
			break
		}
		out[o.ID] = true
	}
	return out, nil
}

// TopKPercentRecords ranks recs by metric and cuts the top k percent in one
// call, for consumers that do not need the intermediate Ranking.
func TopKPercentRecords(recs []models.GamerRecord, metric models.Metric, k float64) (map[string]bool, error) {
	ranking, err := RankRecords(recs, metric)
	if err != nil {
		return nil, err
	}
	return ranking.TopKPercent(k)
}

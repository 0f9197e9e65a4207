// risk/evaluate.go
package risk

import (
	"fmt"

	"github.com/wfunc/gamerisk/models"
	"github.com/wfunc/gamerisk/segment"
)

// Context carries the per-record annotations computed upstream of the
// evaluator: the record's behavioral segment and its cohort memberships,
// keyed by condition name. A missing annotation counts as not a member.
type Context struct {
	Segment segment.Segment
	Cohorts map[string]bool
}

// Verdict 单条记录的评估结果
// Fired lists the in-use conditions that held, in catalog order, so an
// auditor can see why a record was flagged.
type Verdict struct {
	Flagged bool     `json:"flagged"`
	Fired   []string `json:"fired"`
}

// Evaluate applies the rule to one record. The record is not mutated and
// the same inputs always produce the same verdict.
func (r *Rule) Evaluate(rec *models.GamerRecord, ctx Context) (Verdict, error) {
	fired := make([]string, 0, len(r.conditions))
	for _, c := range r.conditions {
		hit, err := evalCondition(c, rec, ctx)
		if err != nil {
			return Verdict{}, fmt.Errorf("rule %s: condition %q: record %s: %w", r.name, c.Name, rec.ID, err)
		}
		if hit {
			fired = append(fired, c.Name)
		}
	}

	flagged := false
	switch r.policy {
	case PolicyAny:
		flagged = len(fired) > 0
	case PolicyAll:
		flagged = len(fired) == len(r.conditions)
	}
	return Verdict{Flagged: flagged, Fired: fired}, nil
}

func evalCondition(c Condition, rec *models.GamerRecord, ctx Context) (bool, error) {
	switch c.Kind {
	case KindThreshold:
		v, err := rec.Metric(c.Metric)
		if err != nil {
			return false, err
		}
		return compare(v, c.Op, c.Value), nil
	case KindFlag:
		return rec.Flag(c.Flag)
	case KindLabel:
		return rec.RiskLabel == models.RiskLevel(c.Level), nil
	case KindSegment:
		return ctx.Segment == c.Segment, nil
	case KindCohort:
		return ctx.Cohorts[c.Name], nil
	}
	// Build 已拒绝未知类型，这里不可达
	return false, fmt.Errorf("unknown condition kind %q", c.Kind)
}

func compare(v float64, op string, bound float64) bool {
	switch op {
	case OpLT:
		return v < bound
	case OpLE:
		return v <= bound
	case OpGT:
		return v > bound
	case OpGE:
		return v >= bound
	case OpEQ:
		return v == bound
	}
	return false
}

// view/view.go
package view

import (
	"context"
	"fmt"
	"sort"

	"github.com/wfunc/gamerisk/logger"
	"github.com/wfunc/gamerisk/persistence"
	"github.com/wfunc/gamerisk/rank"
	"github.com/wfunc/gamerisk/risk"
	"github.com/wfunc/gamerisk/segment"
)

// populationSoftCeiling 每次读取重算一遍 O(n log n) 排位，超过该规模
// 开销开始显著，应换用流式或近似方案。超限仅告警，不拒绝。
const populationSoftCeiling = 200000

// Entry 视图中的一行：被标记的记录与命中的条件名
type Entry struct {
	ID    string   `json:"id"`
	Fired []string `json:"fired"`
}

// Materializer exposes a rule's verdicts as a logical view over the
// record store. It is logical, not physical: every read re-runs
// segmentation, ranking and evaluation against a fresh snapshot, so the
// view is never stale and there is no cache to invalidate. Reads are
// independent, so concurrent readers need no locking here.
type Materializer struct {
	store     persistence.RecordStore
	segmenter *segment.Segmenter
	rule      *risk.Rule
}

// New 组装一个视图
func New(store persistence.RecordStore, segmenter *segment.Segmenter, rule *risk.Rule) *Materializer {
	return &Materializer{store: store, segmenter: segmenter, rule: rule}
}

// Rule returns the compiled rule this view evaluates.
func (m *Materializer) Rule() *risk.Rule {
	return m.rule
}

// Snapshot materializes the view once. Entries are flagged records
// only, sorted by record id; the same store contents always produce the
// same slice.
func (m *Materializer) Snapshot(ctx context.Context) ([]Entry, error) {
	return m.materialize(ctx)
}

// Each traverses a freshly materialized view, stopping early when fn
// returns false. Every call recomputes from current store contents, so
// a restarted traversal observes later writes.
func (m *Materializer) Each(ctx context.Context, fn func(Entry) bool) error {
	entries, err := m.materialize(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !fn(e) {
			return nil
		}
	}
	return nil
}

func (m *Materializer) materialize(ctx context.Context) ([]Entry, error) {
	recs, err := m.store.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	entries := make([]Entry, 0)
	// 空人群得到空视图，不是错误
	if len(recs) == 0 {
		return entries, nil
	}
	if len(recs) > populationSoftCeiling {
		logger.Log.Warnf("population %d exceeds soft ceiling %d, per-read ranking cost grows as n log n",
			len(recs), populationSoftCeiling)
	}

	// 每个群组条件跑一趟排位，成员按条件名注入评估上下文
	memberships := make(map[string]map[string]bool)
	for _, c := range m.rule.CohortConditions() {
		top, err := rank.TopKPercentRecords(recs, c.Metric, c.TopPercent)
		if err != nil {
			return nil, fmt.Errorf("cohort %q: %w", c.Name, err)
		}
		for id := range top {
			if memberships[id] == nil {
				memberships[id] = make(map[string]bool)
			}
			memberships[id][c.Name] = true
		}
	}

	for i := range recs {
		seg, err := m.segmenter.SegmentRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		verdict, err := m.rule.Evaluate(&recs[i], risk.Context{
			Segment: seg,
			Cohorts: memberships[recs[i].ID],
		})
		if err != nil {
			return nil, err
		}
		if verdict.Flagged {
			entries = append(entries, Entry{ID: recs[i].ID, Fired: verdict.Fired})
		}
	}

	// 不依赖存储实现的返回顺序
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

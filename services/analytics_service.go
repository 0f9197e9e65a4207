// services/analytics_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wfunc/gamerisk/models"
	"github.com/wfunc/gamerisk/persistence"
	"github.com/wfunc/gamerisk/rank"
	"github.com/wfunc/gamerisk/reports"
	"github.com/wfunc/gamerisk/risk"
	"github.com/wfunc/gamerisk/segment"
	"github.com/wfunc/gamerisk/view"
)

// ErrUnknownRule 请求了未配置的规则名
var ErrUnknownRule = errors.New("unknown rule")

// RecordVerdict 单条记录在全量人群上下文里的评估结果
type RecordVerdict struct {
	ID      string          `json:"id"`
	Rule    string          `json:"rule"`
	Segment segment.Segment `json:"segment"`
	Flagged bool            `json:"flagged"`
	Fired   []string        `json:"fired"`
}

// MetricStanding 排位榜上的一行
type MetricStanding struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
	Rank  float64 `json:"rank"`
}

// SegmentBreakdown 两个维度的分段人数
type SegmentBreakdown struct {
	Gaming map[segment.Segment]int `json:"gaming"`
	Sleep  map[segment.Segment]int `json:"sleep"`
}

// AnalyticsService orchestrates the store and the engine for the
// HTTP/RPC surfaces. All configured rules are compiled here, at
// construction, so a broken rule config stops startup instead of
// surfacing mid-request.
type AnalyticsService struct {
	store          persistence.RecordStore
	segmenter      *segment.Segmenter
	sleepSegmenter *segment.Segmenter
	ruleNames      []string
	views          map[string]*view.Materializer
	runner         *reports.Runner
}

func NewAnalyticsService(store persistence.RecordStore, segmenter *segment.Segmenter, rules []risk.RuleConfig) (*AnalyticsService, error) {
	if len(rules) == 0 {
		rules = risk.DefaultRules()
	}
	sleepSeg, err := segment.NewWithLabels(segment.DefaultSleepThresholds,
		segment.SegmentShortSleep, segment.SegmentNormalSleep, segment.SegmentLongSleep)
	if err != nil {
		return nil, err
	}

	s := &AnalyticsService{
		store:          store,
		segmenter:      segmenter,
		sleepSegmenter: sleepSeg,
		views:          make(map[string]*view.Materializer, len(rules)),
	}
	for _, rc := range rules {
		rule, err := rc.Build()
		if err != nil {
			return nil, err
		}
		if _, dup := s.views[rule.Name()]; dup {
			return nil, fmt.Errorf("duplicate rule %q", rule.Name())
		}
		s.views[rule.Name()] = view.New(store, segmenter, rule)
		s.ruleNames = append(s.ruleNames, rule.Name())
	}
	return s, nil
}

// SetReportRunner wires the SQL report runner. Left unset on stores
// without an SQL connection.
func (s *AnalyticsService) SetReportRunner(r *reports.Runner) {
	s.runner = r
}

// RuleNames 返回配置顺序的规则名
func (s *AnalyticsService) RuleNames() []string {
	out := make([]string, len(s.ruleNames))
	copy(out, s.ruleNames)
	return out
}

// View 按规则名取物化视图
func (s *AnalyticsService) View(rule string) (*view.Materializer, bool) {
	v, ok := s.views[rule]
	return v, ok
}

// AtRisk 物化一次指定规则的视图
func (s *AnalyticsService) AtRisk(ctx context.Context, rule string) ([]view.Entry, error) {
	v, ok := s.views[rule]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, rule)
	}
	return v.Snapshot(ctx)
}

// RecordRisk 在全量人群上下文里评估单条记录
func (s *AnalyticsService) RecordRisk(ctx context.Context, id, ruleName string) (*RecordVerdict, error) {
	v, ok := s.views[ruleName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, ruleName)
	}

	recs, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	var target *models.GamerRecord
	for i := range recs {
		if recs[i].ID == id {
			target = &recs[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %q", persistence.ErrRecordNotFound, id)
	}

	// 群组归属要在全量人群上排位，不能只看这一条
	rule := v.Rule()
	cohorts := make(map[string]bool)
	for _, c := range rule.CohortConditions() {
		top, err := rank.TopKPercentRecords(recs, c.Metric, c.TopPercent)
		if err != nil {
			return nil, fmt.Errorf("cohort %q: %w", c.Name, err)
		}
		if top[id] {
			cohorts[c.Name] = true
		}
	}

	seg, err := s.segmenter.SegmentRecord(target)
	if err != nil {
		return nil, err
	}
	verdict, err := rule.Evaluate(target, risk.Context{Segment: seg, Cohorts: cohorts})
	if err != nil {
		return nil, err
	}
	return &RecordVerdict{
		ID:      id,
		Rule:    ruleName,
		Segment: seg,
		Flagged: verdict.Flagged,
		Fired:   verdict.Fired,
	}, nil
}

// TopByMetric 任一指标的 top-K% 排位榜，按值降序
func (s *AnalyticsService) TopByMetric(ctx context.Context, metric models.Metric, k float64) ([]MetricStanding, error) {
	recs, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	ranking, err := rank.RankRecords(recs, metric)
	if err != nil {
		return nil, err
	}
	top, err := ranking.TopKPercent(k)
	if err != nil {
		return nil, err
	}

	values := make(map[string]float64, len(recs))
	for i := range recs {
		v, err := recs[i].Metric(metric)
		if err != nil {
			return nil, err
		}
		values[recs[i].ID] = v
	}

	out := make([]MetricStanding, 0, len(top))
	for id := range top {
		r, _ := ranking.Rank(id)
		out = append(out, MetricStanding{ID: id, Value: values[id], Rank: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// TopSpenders 月消费排位榜
func (s *AnalyticsService) TopSpenders(ctx context.Context, k float64) ([]MetricStanding, error) {
	return s.TopByMetric(ctx, models.MetricMonthlySpending, k)
}

// SegmentCounts 游戏时长与睡眠两个维度的分段人数
func (s *AnalyticsService) SegmentCounts(ctx context.Context) (*SegmentBreakdown, error) {
	recs, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	out := &SegmentBreakdown{
		Gaming: make(map[segment.Segment]int),
		Sleep:  make(map[segment.Segment]int),
	}
	for i := range recs {
		gaming, err := s.segmenter.SegmentRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out.Gaming[gaming]++

		sleep, err := s.sleepSegmenter.Segment(recs[i].SleepHours)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", recs[i].ID, err)
		}
		out.Sleep[sleep]++
	}
	return out, nil
}

// PopulationOverview 存储侧聚合的人群统计
func (s *AnalyticsService) PopulationOverview(ctx context.Context) (*models.PopulationStats, error) {
	return s.store.PopulationStats(ctx)
}

// ImportRecords 批量写入记录，单条非法整批拒绝
func (s *AnalyticsService) ImportRecords(ctx context.Context, recs []models.GamerRecord) error {
	return s.store.UpsertBatch(ctx, recs)
}

// ExportReports 跑一遍报表目录并落盘，返回生成的文件
func (s *AnalyticsService) ExportReports(ctx context.Context, dir string) ([]string, error) {
	if s.runner == nil {
		return nil, fmt.Errorf("report runner not configured")
	}
	return s.runner.ExportAll(ctx, dir)
}

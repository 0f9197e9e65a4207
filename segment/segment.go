// segment/segment.go
package segment

import (
	"fmt"
	"math"

	"github.com/wfunc/gamerisk/models"
)

// Segment 行为分层标签
type Segment string

// Labels for the default daily-gaming-hours segmentation.
const (
	SegmentCasual   Segment = "Casual"
	SegmentModerate Segment = "Moderate"
	SegmentHardcore Segment = "Hardcore"
)

// Labels for the sleep-hours segmentation driven by the same machinery.
const (
	SegmentShortSleep  Segment = "ShortSleep"
	SegmentNormalSleep Segment = "NormalSleep"
	SegmentLongSleep   Segment = "LongSleep"
)

// Thresholds 分层边界对，来自配置而不是写死的常量
type Thresholds struct {
	Lower float64 `mapstructure:"lower" json:"lower"`
	Upper float64 `mapstructure:"upper" json:"upper"`
}

// DefaultThresholds is the daily-gaming-hours pair: casual below 2 hours,
// hardcore above 5.
var DefaultThresholds = Thresholds{Lower: 2, Upper: 5}

// DefaultSleepThresholds buckets sleep the same way: short below 6 hours,
// long above 9.
var DefaultSleepThresholds = Thresholds{Lower: 6, Upper: 9}

// Validate checks that the pair describes three non-empty intervals.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Lower) || math.IsNaN(t.Upper) {
		return fmt.Errorf("%w: threshold pair (%v, %v)", models.ErrInvalidMetric, t.Lower, t.Upper)
	}
	if t.Lower < 0 || t.Upper <= t.Lower {
		return fmt.Errorf("%w: threshold pair (%v, %v) must satisfy 0 <= lower < upper", models.ErrInvalidMetric, t.Lower, t.Upper)
	}
	return nil
}

// Segmenter 把连续指标划进互斥的三个分层
//
// Boundary convention, fixed so no value is double-counted or dropped:
// [0, Lower) -> first label, [Lower, Upper] -> second, (Upper, +Inf) -> third.
// A value exactly at Lower or Upper therefore belongs to the middle segment.
type Segmenter struct {
	thresholds Thresholds
	labels     [3]Segment
}

// New builds a Segmenter with the Casual/Moderate/Hardcore labels.
func New(t Thresholds) (*Segmenter, error) {
	return NewWithLabels(t, SegmentCasual, SegmentModerate, SegmentHardcore)
}

// NewWithLabels builds a Segmenter over any metric with caller-chosen labels,
// e.g. sleep-hours buckets.
func NewWithLabels(t Thresholds, low, mid, high Segment) (*Segmenter, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if low == "" || mid == "" || high == "" {
		return nil, fmt.Errorf("segment labels must be non-empty")
	}
	if low == mid || mid == high || low == high {
		return nil, fmt.Errorf("segment labels must be distinct: %q %q %q", low, mid, high)
	}
	return &Segmenter{thresholds: t, labels: [3]Segment{low, mid, high}}, nil
}

// Default returns the gaming-hours Segmenter with the (2, 5) pair.
func Default() *Segmenter {
	s, err := New(DefaultThresholds)
	if err != nil {
		panic("segment: default thresholds invalid: " + err.Error())
	}
	return s
}

// Thresholds returns the configured boundary pair.
func (s *Segmenter) Thresholds() Thresholds {
	return s.thresholds
}

// Segment assigns a single non-negative value to exactly one segment.
// Pure: identical input always yields the identical label.
func (s *Segmenter) Segment(v float64) (Segment, error) {
	if math.IsNaN(v) || v < 0 {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidMetric, v)
	}
	switch {
	case v < s.thresholds.Lower:
		return s.labels[0], nil
	case v <= s.thresholds.Upper:
		return s.labels[1], nil
	default:
		return s.labels[2], nil
	}
}

// SegmentRecord segments a record by its daily gaming hours.
func (s *Segmenter) SegmentRecord(rec *models.GamerRecord) (Segment, error) {
	seg, err := s.Segment(rec.DailyGamingHours)
	if err != nil {
		return "", fmt.Errorf("record %s: %w", rec.ID, err)
	}
	return seg, nil
}

// SegmentAll maps the segmenter over a batch, keyed by record id.
func (s *Segmenter) SegmentAll(recs []models.GamerRecord) (map[string]Segment, error) {
	out := make(map[string]Segment, len(recs))
	for i := range recs {
		seg, err := s.SegmentRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out[recs[i].ID] = seg
	}
	return out, nil
}

package segment

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/wfunc/gamerisk/models"
)

func TestSegment_Boundaries(t *testing.T) {
	s := Default()

	cases := []struct {
		hours float64
		want  Segment
	}{
		{0, SegmentCasual},
		{1.9, SegmentCasual},
		{2.0, SegmentModerate},
		{3.7, SegmentModerate},
		{5.0, SegmentModerate},
		{5.1, SegmentHardcore},
		{16, SegmentHardcore},
	}
	for _, c := range cases {
		got, err := s.Segment(c.hours)
		if err != nil {
			t.Fatalf("Segment(%v) returned error: %v", c.hours, err)
		}
		if got != c.want {
			t.Errorf("Segment(%v) = %s, want %s", c.hours, got, c.want)
		}
	}
}

func TestSegment_NegativeValue(t *testing.T) {
	s := Default()
	if _, err := s.Segment(-0.5); !errors.Is(err, models.ErrInvalidMetric) {
		t.Errorf("expected ErrInvalidMetric for negative hours, got %v", err)
	}
}

// TestSegment_Partition checks that the three segments partition [0, +inf):
// for a large random sample every value lands in exactly one segment.
func TestSegment_Partition(t *testing.T) {
	s := Default()
	rng := rand.New(rand.NewSource(1))

	counts := map[Segment]int{}
	for i := 0; i < 100000; i++ {
		v := rng.Float64() * 24
		seg, err := s.Segment(v)
		if err != nil {
			t.Fatalf("Segment(%v) returned error: %v", v, err)
		}
		switch seg {
		case SegmentCasual, SegmentModerate, SegmentHardcore:
			counts[seg]++
		default:
			t.Fatalf("Segment(%v) returned unknown label %q", v, seg)
		}
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total != 100000 {
		t.Errorf("expected every value in exactly one segment, got %d assignments", total)
	}
	for _, seg := range []Segment{SegmentCasual, SegmentModerate, SegmentHardcore} {
		if counts[seg] == 0 {
			t.Errorf("segment %s never hit over uniform [0,24) sample", seg)
		}
	}
}

func TestSegment_Determinism(t *testing.T) {
	s := Default()
	for i := 0; i < 100; i++ {
		a, _ := s.Segment(4.999)
		b, _ := s.Segment(4.999)
		if a != b {
			t.Fatalf("Segment is not deterministic: %s != %s", a, b)
		}
	}
}

func TestNewWithLabels_SleepBuckets(t *testing.T) {
	s, err := NewWithLabels(DefaultSleepThresholds, SegmentShortSleep, SegmentNormalSleep, SegmentLongSleep)
	if err != nil {
		t.Fatalf("NewWithLabels failed: %v", err)
	}

	if seg, _ := s.Segment(5.5); seg != SegmentShortSleep {
		t.Errorf("5.5h sleep: expected %s, got %s", SegmentShortSleep, seg)
	}
	if seg, _ := s.Segment(6.0); seg != SegmentNormalSleep {
		t.Errorf("6.0h sleep: expected %s, got %s", SegmentNormalSleep, seg)
	}
	if seg, _ := s.Segment(9.5); seg != SegmentLongSleep {
		t.Errorf("9.5h sleep: expected %s, got %s", SegmentLongSleep, seg)
	}
}

func TestNew_RejectsBadThresholds(t *testing.T) {
	if _, err := New(Thresholds{Lower: 5, Upper: 2}); err == nil {
		t.Error("expected error for inverted threshold pair")
	}
	if _, err := New(Thresholds{Lower: -1, Upper: 2}); err == nil {
		t.Error("expected error for negative lower threshold")
	}
	if _, err := NewWithLabels(DefaultThresholds, "A", "A", "B"); err == nil {
		t.Error("expected error for duplicate labels")
	}
}

func TestSegmentAll(t *testing.T) {
	s := Default()
	recs := []models.GamerRecord{
		{ID: "a", DailyGamingHours: 0.5},
		{ID: "b", DailyGamingHours: 3},
		{ID: "c", DailyGamingHours: 9},
	}

	got, err := s.SegmentAll(recs)
	if err != nil {
		t.Fatalf("SegmentAll failed: %v", err)
	}
	want := map[string]Segment{"a": SegmentCasual, "b": SegmentModerate, "c": SegmentHardcore}
	for id, seg := range want {
		if got[id] != seg {
			t.Errorf("record %s: expected %s, got %s", id, seg, got[id])
		}
	}

	recs[1].DailyGamingHours = -2
	if _, err := s.SegmentAll(recs); !errors.Is(err, models.ErrInvalidMetric) {
		t.Errorf("expected ErrInvalidMetric from batch with bad value, got %v", err)
	}
}

package view

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/wfunc/gamerisk/models"
	"github.com/wfunc/gamerisk/persistence"
	"github.com/wfunc/gamerisk/risk"
	"github.com/wfunc/gamerisk/segment"
)

func record(id string, sleep, spending float64) models.GamerRecord {
	return models.GamerRecord{
		ID:               id,
		DailyGamingHours: 3,
		MonthlySpending:  spending,
		SleepHours:       sleep,
		Platform:         models.PlatformPC,
		Genre:            "MOBA",
		Occupation:       models.OccupationProfessional,
		RiskLabel:        models.RiskLow,
	}
}

func clinicalView(t *testing.T, store persistence.RecordStore) *Materializer {
	t.Helper()
	rc, ok := risk.FindRule(risk.DefaultRules(), risk.RuleAtRisk)
	if !ok {
		t.Fatal("at_risk rule missing from defaults")
	}
	return New(store, segment.Default(), rc.MustBuild())
}

func TestSnapshot_FlagsAndOrders(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	if err := store.UpsertBatch(ctx, []models.GamerRecord{
		record("g3", 4, 10),  // 睡眠不足
		record("g1", 8, 20),  // 干净
		record("g2", 5.5, 5), // 睡眠不足
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	entries, err := clinicalView(t, store).Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	want := []Entry{
		{ID: "g2", Fired: []string{"sleep_hours<6"}},
		{ID: "g3", Fired: []string{"sleep_hours<6"}},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("snapshot = %+v, want %+v", entries, want)
	}
}

// The view is logical: a write after one read is visible in the next.
func TestSnapshot_NeverStale(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	m := clinicalView(t, store)

	rec := record("g1", 8, 0)
	if err := store.UpsertRecord(ctx, &rec); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	entries, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty view, got %+v", entries)
	}

	// 同一条记录睡眠恶化后重读
	rec.SleepHours = 4
	if err := store.UpsertRecord(ctx, &rec); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	entries, err = m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "g1" {
		t.Errorf("view did not pick up the update: %+v", entries)
	}
}

func TestSnapshot_Deterministic(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		rec := record(fmt.Sprintf("g%02d", i), float64(3+i%6), float64(i))
		if err := store.UpsertRecord(ctx, &rec); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	m := clinicalView(t, store)

	first, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	second, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same store contents produced different views")
	}
}

func TestEach_RestartableAndEarlyStop(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	if err := store.UpsertBatch(ctx, []models.GamerRecord{
		record("g1", 4, 0),
		record("g2", 4, 0),
		record("g3", 4, 0),
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	m := clinicalView(t, store)

	var seen []string
	err := m.Each(ctx, func(e Entry) bool {
		seen = append(seen, e.ID)
		return len(seen) < 2 // 第二条后停止
	})
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if !reflect.DeepEqual(seen, []string{"g1", "g2"}) {
		t.Errorf("early stop saw %v", seen)
	}

	// 重新遍历从头开始，看到全量
	seen = nil
	if err := m.Each(ctx, func(e Entry) bool {
		seen = append(seen, e.ID)
		return true
	}); err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if !reflect.DeepEqual(seen, []string{"g1", "g2", "g3"}) {
		t.Errorf("restarted traversal saw %v", seen)
	}
}

func TestSnapshot_WhaleCohort(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	recs := make([]models.GamerRecord, 0, 20)
	for i := 0; i < 20; i++ {
		recs = append(recs, record(fmt.Sprintf("g%02d", i), 8, float64(10+i)))
	}
	recs[7].MonthlySpending = 5000 // 鲸鱼
	if err := store.UpsertBatch(ctx, recs); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	rc, ok := risk.FindRule(risk.DefaultRules(), risk.RuleWhales)
	if !ok {
		t.Fatal("whales rule missing from defaults")
	}
	m := New(store, segment.Default(), rc.MustBuild())

	entries, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	want := []Entry{{ID: "g07", Fired: []string{"top_5%_monthly_spending"}}}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("whale view = %+v, want %+v", entries, want)
	}
}

func TestSnapshot_EmptyStore(t *testing.T) {
	m := clinicalView(t, persistence.NewMemoryStore())

	entries, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("empty store produced entries: %+v", entries)
	}
}

// failingStore is a test double whose reads always fail.
type failingStore struct {
	persistence.RecordStore
}

func (f *failingStore) FetchAll(ctx context.Context) ([]models.GamerRecord, error) {
	return nil, errors.New("connection refused")
}

func TestSnapshot_StoreErrorPropagates(t *testing.T) {
	m := clinicalView(t, &failingStore{})

	if _, err := m.Snapshot(context.Background()); err == nil {
		t.Error("expected store error to propagate")
	}
	if err := m.Each(context.Background(), func(Entry) bool { return true }); err == nil {
		t.Error("expected store error to propagate through Each")
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/wfunc/gamerisk/logger"
	"github.com/wfunc/gamerisk/models"
	"github.com/wfunc/gamerisk/persistence"
	"github.com/wfunc/gamerisk/risk"
	"github.com/wfunc/gamerisk/segment"
	"github.com/wfunc/gamerisk/services"
	"github.com/wfunc/gamerisk/view"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func testRecord(id string, hours, spending, sleep float64) models.GamerRecord {
	return models.GamerRecord{
		ID:               id,
		DailyGamingHours: hours,
		MonthlySpending:  spending,
		SleepHours:       sleep,
		ExerciseHours:    1,
		Productivity:     60,
		Platform:         models.PlatformPC,
		Genre:            "RPG",
		Occupation:       models.OccupationProfessional,
	}
}

// seedStore 三条记录: g1 正常, g2 睡眠不足, g3 有戒断症状
func seedStore(t *testing.T) *persistence.MemoryStore {
	t.Helper()
	store := persistence.NewMemoryStore()
	recs := []models.GamerRecord{
		testRecord("g1", 1.5, 500, 8),
		testRecord("g2", 6, 120, 4.5),
		testRecord("g3", 3, 60, 7),
	}
	recs[2].WithdrawalSymptoms = true
	if err := store.UpsertBatch(context.Background(), recs); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
	return store
}

func newTestServer(t *testing.T, store persistence.RecordStore) *RiskServer {
	t.Helper()
	svc, err := services.NewAnalyticsService(store, segment.Default(), risk.DefaultRules())
	if err != nil {
		t.Fatalf("Failed to build service: %v", err)
	}
	return &RiskServer{service: svc}
}

func TestHandleAtRisk(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/at-risk", nil)
	w := httptest.NewRecorder()
	s.handleAtRisk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Rule    string       `json:"rule"`
		Count   int          `json:"count"`
		Entries []view.Entry `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Rule != risk.RuleAtRisk {
		t.Errorf("Expected rule %s, got %s", risk.RuleAtRisk, resp.Rule)
	}
	if resp.Count != 2 || len(resp.Entries) != 2 {
		t.Fatalf("Expected 2 flagged entries, got count=%d len=%d", resp.Count, len(resp.Entries))
	}
	if resp.Entries[0].ID != "g2" || resp.Entries[1].ID != "g3" {
		t.Errorf("Unexpected entries: %+v", resp.Entries)
	}
}

func TestHandleAtRisk_UnknownRule(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/at-risk?rule=nope", nil)
	w := httptest.NewRecorder()
	s.handleAtRisk(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestHandleTop(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	// n=3, k=40: 只有并列最高位能进榜
	req := httptest.NewRequest(http.MethodGet, "/api/top?metric=monthly_spending&k=40", nil)
	w := httptest.NewRecorder()
	s.handleTop(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Metric    string                    `json:"metric"`
		K         float64                   `json:"k"`
		Standings []services.MetricStanding `json:"standings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Metric != string(models.MetricMonthlySpending) || resp.K != 40 {
		t.Errorf("Unexpected echo: metric=%s k=%v", resp.Metric, resp.K)
	}
	if len(resp.Standings) != 1 {
		t.Fatalf("Expected 1 standing, got %d", len(resp.Standings))
	}
	top := resp.Standings[0]
	if top.ID != "g1" || top.Value != 500 || top.Rank != 1 {
		t.Errorf("Unexpected top standing: %+v", top)
	}
}

func TestHandleTop_BadInput(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	cases := []struct {
		name   string
		target string
	}{
		{"unparseable percentile", "/api/top?k=abc"},
		{"percentile out of range", "/api/top?k=0"},
		{"unknown metric", "/api/top?metric=shoe_size&k=10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			w := httptest.NewRecorder()
			s.handleTop(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestHandleTop_EmptyPopulation(t *testing.T) {
	s := newTestServer(t, persistence.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/api/top?metric=monthly_spending&k=10", nil)
	w := httptest.NewRecorder()
	s.handleTop(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for empty population, got %d", w.Code)
	}
	var resp struct {
		Standings []services.MetricStanding `json:"standings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Standings) != 0 {
		t.Errorf("Expected empty standings, got %+v", resp.Standings)
	}
}

func TestHandleSegments(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/segments", nil)
	w := httptest.NewRecorder()
	s.handleSegments(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp services.SegmentBreakdown
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Gaming[segment.SegmentCasual] != 1 || resp.Gaming[segment.SegmentModerate] != 1 || resp.Gaming[segment.SegmentHardcore] != 1 {
		t.Errorf("Unexpected gaming breakdown: %+v", resp.Gaming)
	}
	if resp.Sleep[segment.SegmentShortSleep] != 1 || resp.Sleep[segment.SegmentNormalSleep] != 2 {
		t.Errorf("Unexpected sleep breakdown: %+v", resp.Sleep)
	}
}

func TestHandleRecordRisk(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/record-risk?id=g2", nil)
	w := httptest.NewRecorder()
	s.handleRecordRisk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var verdict services.RecordVerdict
	if err := json.Unmarshal(w.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if verdict.ID != "g2" || !verdict.Flagged {
		t.Errorf("Expected g2 flagged, got %+v", verdict)
	}
	if verdict.Segment != segment.SegmentHardcore {
		t.Errorf("Expected Hardcore segment, got %s", verdict.Segment)
	}
	if len(verdict.Fired) != 1 || verdict.Fired[0] != "sleep_hours<6" {
		t.Errorf("Unexpected fired conditions: %v", verdict.Fired)
	}
}

func TestHandleRecordRisk_MissingID(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/record-risk", nil)
	w := httptest.NewRecorder()
	s.handleRecordRisk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleRecordRisk_NotFound(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/record-risk?id=ghost", nil)
	w := httptest.NewRecorder()
	s.handleRecordRisk(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestHandleStats(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	s.handleStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var stats models.PopulationStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats.TotalRecords != 3 {
		t.Errorf("Expected 3 records, got %d", stats.TotalRecords)
	}
	if stats.WithdrawalCount != 1 {
		t.Errorf("Expected 1 withdrawal record, got %d", stats.WithdrawalCount)
	}
}

func TestAPIRejectsWrites(t *testing.T) {
	s := newTestServer(t, seedStore(t))

	req := httptest.NewRequest(http.MethodPost, "/api/at-risk", nil)
	w := httptest.NewRecorder()
	s.handleAtRisk(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

package reports

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wfunc/gamerisk/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func TestExportJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "nested", "out.json")

	data := []map[string]interface{}{
		{"platform": "PC", "gamers": 12},
		{"platform": "Mobile", "gamers": 7},
	}
	if err := ExportJSON(filename, data); err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("reading export failed: %v", err)
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0]["platform"] != "PC" {
		t.Errorf("unexpected export contents: %v", decoded)
	}
}

func TestTimestampedFilename(t *testing.T) {
	name := TimestampedFilename("out", "sleep_by_segment")
	if !strings.HasPrefix(name, filepath.Join("out", "sleep_by_segment_")) {
		t.Errorf("unexpected prefix: %s", name)
	}
	if !strings.HasSuffix(name, ".json") {
		t.Errorf("missing .json suffix: %s", name)
	}
}

func TestQuery_CatalogComplete(t *testing.T) {
	for _, name := range ReportNames {
		q, ok := Query(name)
		if !ok {
			t.Errorf("report %s missing from catalog", name)
			continue
		}
		if !strings.Contains(q, "gamer_records") {
			t.Errorf("report %s does not read gamer_records", name)
		}
		if !strings.Contains(q, "deleted_at IS NULL") {
			t.Errorf("report %s ignores soft deletes", name)
		}
	}
	if _, ok := Query("no_such_report"); ok {
		t.Error("unknown report resolved")
	}
}

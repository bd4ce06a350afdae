package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/pandeptwidyaop/cmdprobe/internal/database"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return NewStore(db)
}

func sampleResult(id, commandID string, success bool, risk models.OverallRisk, tags []string, at time.Time) *models.TestResult {
	return &models.TestResult{
		ID:        id,
		CommandID: commandID,
		Command:   commandID,
		Timestamp: at,
		Execution: models.ExecutionResult{
			Success:     success,
			Duration:    40 * time.Millisecond,
			SideEffects: []models.SideEffect{},
		},
		Analysis: models.ResultAnalysis{
			Risk: models.RiskAssessment{OverallRisk: risk},
		},
		Tags: tags,
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	store := setupStore(t)
	tr := sampleResult("r1", "editor.format", true, models.RiskVeryLow, []string{"editor", "success"}, time.Now())
	tr.Notes = "first run"

	if err := store.Save(tr); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get("r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CommandID != "editor.format" || !got.Execution.Success || got.Notes != "first run" {
		t.Errorf("Round trip mismatch: %+v", got)
	}

	if _, err := store.Get("missing"); err != ErrResultNotFound {
		t.Errorf("Expected ErrResultNotFound, got %v", err)
	}
}

func TestStoreDuplicateID(t *testing.T) {
	store := setupStore(t)
	tr := sampleResult("dup", "editor.format", true, models.RiskVeryLow, nil, time.Now())
	if err := store.Save(tr); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(tr); err == nil {
		t.Error("Expected duplicate id to error")
	}
}

func TestStoreSearch(t *testing.T) {
	store := setupStore(t)
	base := time.Now().Add(-time.Hour)
	seed := []*models.TestResult{
		sampleResult("r1", "editor.format", true, models.RiskVeryLow, []string{"editor", "success"}, base),
		sampleResult("r2", "workspace.clean", true, models.RiskMedium, []string{"workspace", "success", "has-side-effects"}, base.Add(time.Minute)),
		sampleResult("r3", "workspace.purge", false, models.RiskVeryHigh, []string{"workspace", "failure"}, base.Add(2*time.Minute)),
	}
	for _, tr := range seed {
		if err := store.Save(tr); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	t.Run("by command", func(t *testing.T) {
		got, err := store.Search(SearchCriteria{CommandID: "editor.format"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "r1" {
			t.Errorf("Unexpected results %v", got)
		}
	})

	t.Run("by success", func(t *testing.T) {
		failed := false
		got, err := store.Search(SearchCriteria{Success: &failed})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "r3" {
			t.Errorf("Unexpected results %v", got)
		}
	})

	t.Run("by risk", func(t *testing.T) {
		got, err := store.Search(SearchCriteria{Risk: models.RiskVeryHigh})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "r3" {
			t.Errorf("Unexpected results %v", got)
		}
	})

	t.Run("by tag", func(t *testing.T) {
		got, err := store.Search(SearchCriteria{Tags: []string{"workspace", "success"}})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "r2" {
			t.Errorf("Unexpected results %v", got)
		}
	})

	t.Run("time window", func(t *testing.T) {
		from := base.Add(30 * time.Second)
		got, err := store.Search(SearchCriteria{From: &from})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Expected 2 results, got %d", len(got))
		}
	})

	t.Run("ordering and limit", func(t *testing.T) {
		got, err := store.Search(SearchCriteria{Limit: 2})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != "r3" || got[1].ID != "r2" {
			t.Errorf("Expected newest first, got %v", got)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		got, err := store.Search(SearchCriteria{CommandID: "nope"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Expected empty result set, got %v", got)
		}
	})
}

func TestStoreStatistics(t *testing.T) {
	store := setupStore(t)

	empty, err := store.Statistics()
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if empty.TotalResults != 0 || empty.SuccessRate != 0 {
		t.Errorf("Unexpected empty stats %+v", empty)
	}

	now := time.Now()
	seed := []*models.TestResult{
		sampleResult("r1", "editor.format", true, models.RiskVeryLow, []string{"editor"}, now),
		sampleResult("r2", "editor.format", true, models.RiskVeryLow, []string{"editor"}, now),
		sampleResult("r3", "workspace.purge", false, models.RiskVeryHigh, []string{"workspace"}, now),
	}
	for _, tr := range seed {
		if err := store.Save(tr); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	stats, err := store.Statistics()
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalResults != 3 {
		t.Errorf("TotalResults = %d, want 3", stats.TotalResults)
	}
	if stats.SuccessRate < 0.66 || stats.SuccessRate > 0.67 {
		t.Errorf("SuccessRate = %f, want ~0.667", stats.SuccessRate)
	}
	if stats.CommandsCovered != 2 {
		t.Errorf("CommandsCovered = %d, want 2", stats.CommandsCovered)
	}
	if stats.RiskDistribution["very_low"] != 2 || stats.RiskDistribution["very_high"] != 1 {
		t.Errorf("Unexpected risk distribution %v", stats.RiskDistribution)
	}
	if stats.TagDistribution["editor"] != 2 || stats.TagDistribution["workspace"] != 1 {
		t.Errorf("Unexpected tag distribution %v", stats.TagDistribution)
	}
	if stats.AverageDuration != 40*time.Millisecond {
		t.Errorf("AverageDuration = %v, want 40ms", stats.AverageDuration)
	}
}

func TestExport(t *testing.T) {
	store := setupStore(t)
	analyzer := NewAnalyzer(store, NewSessionCollector(nil, "test", nil))

	tr := sampleResult("r1", "editor.format", true, models.RiskVeryLow, []string{"editor"}, time.Now())
	if err := store.Save(tr); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	jsonOut, err := analyzer.Export(FormatJSON, SearchCriteria{})
	if err != nil {
		t.Fatalf("JSON export failed: %v", err)
	}
	if !strings.Contains(jsonOut, `"editor.format"`) {
		t.Error("JSON export missing command id")
	}

	csvOut, err := analyzer.Export(FormatCSV, SearchCriteria{})
	if err != nil {
		t.Fatalf("CSV export failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(csvOut), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header plus one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,command_id") {
		t.Errorf("Unexpected CSV header %q", lines[0])
	}

	mdOut, err := analyzer.Export(FormatMarkdown, SearchCriteria{})
	if err != nil {
		t.Fatalf("Markdown export failed: %v", err)
	}
	if !strings.Contains(mdOut, "| editor.format |") {
		t.Errorf("Markdown export missing row: %q", mdOut)
	}

	if _, err := analyzer.Export("xml", SearchCriteria{}); err == nil {
		t.Error("Expected unsupported format error")
	}
}

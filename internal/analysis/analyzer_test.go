package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

func safeResult(d time.Duration) *models.ExecutionResult {
	return &models.ExecutionResult{
		Success:     true,
		Duration:    d,
		SideEffects: []models.SideEffect{},
	}
}

func TestAnalyzeSafeCleanRun(t *testing.T) {
	desc := &models.CommandDescriptor{ID: "editor.format", Name: "Format", RiskTier: models.TierSafe}
	analysis := Analyze(desc, safeResult(50*time.Millisecond))

	if analysis.Performance.Category != models.DurationFast {
		t.Errorf("Category = %q, want fast", analysis.Performance.Category)
	}
	if analysis.SideEffects.RiskLevel != models.EffectRiskNone {
		t.Errorf("RiskLevel = %q, want none", analysis.SideEffects.RiskLevel)
	}
	if analysis.Risk.Score != 0 {
		t.Errorf("Score = %d, want 0", analysis.Risk.Score)
	}
	if analysis.Risk.OverallRisk != models.RiskVeryLow {
		t.Errorf("OverallRisk = %q, want very_low", analysis.Risk.OverallRisk)
	}
	if analysis.Risk.AutomationSuitability != models.SuitabilityExcellent {
		t.Errorf("Suitability = %q, want excellent", analysis.Risk.AutomationSuitability)
	}
}

func TestAnalyzeWorstCase(t *testing.T) {
	desc := &models.CommandDescriptor{ID: "workspace.purge", RiskTier: models.TierDestructive}
	result := &models.ExecutionResult{
		Success:  false,
		Duration: 90 * time.Millisecond,
		Err:      &models.ExecutionError{Message: "boom", Type: models.ErrorUnknown},
		SideEffects: []models.SideEffect{
			{Type: models.EffectFileDeleted, Resource: "/workspace/a.go", Severity: models.SeverityMedium},
		},
	}

	analysis := Analyze(desc, result)
	// destructive(3) + deletion(3) + failure(1)
	if analysis.Risk.Score != 7 {
		t.Errorf("Score = %d, want 7", analysis.Risk.Score)
	}
	if analysis.Risk.OverallRisk != models.RiskVeryHigh {
		t.Errorf("OverallRisk = %q, want very_high", analysis.Risk.OverallRisk)
	}
	if analysis.Risk.AutomationSuitability != models.SuitabilityUnsuitable {
		t.Errorf("Suitability = %q, want unsuitable", analysis.Risk.AutomationSuitability)
	}
	if analysis.SideEffects.RiskLevel != models.EffectRiskHigh {
		t.Errorf("Effect risk = %q, want high", analysis.SideEffects.RiskLevel)
	}
	if len(analysis.Risk.Precautions) == 0 {
		t.Error("Expected snapshot precaution for effectful run")
	}
	if len(analysis.Recommendations) == 0 {
		t.Error("Expected failure recommendation")
	}
}

func TestAnalyzeRiskScoreMonotonic(t *testing.T) {
	desc := func(tier models.RiskTier) *models.CommandDescriptor {
		return &models.CommandDescriptor{ID: "x", RiskTier: tier}
	}
	safe := Analyze(desc(models.TierSafe), safeResult(time.Millisecond))
	moderate := Analyze(desc(models.TierModerate), safeResult(time.Millisecond))
	destructive := Analyze(desc(models.TierDestructive), safeResult(time.Millisecond))

	if !(safe.Risk.Score < moderate.Risk.Score && moderate.Risk.Score < destructive.Risk.Score) {
		t.Errorf("Scores not monotonic in declared tier: %d, %d, %d",
			safe.Risk.Score, moderate.Risk.Score, destructive.Risk.Score)
	}
}

func TestAnalyzePerformanceBuckets(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want models.DurationCategory
	}{
		{50 * time.Millisecond, models.DurationFast},
		{500 * time.Millisecond, models.DurationModerate},
		{2 * time.Second, models.DurationSlow},
		{10 * time.Second, models.DurationVerySlow},
	}
	for _, tt := range tests {
		got := analyzePerformance(tt.d)
		if got.Category != tt.want {
			t.Errorf("analyzePerformance(%v) = %q, want %q", tt.d, got.Category, tt.want)
		}
	}
}

func TestAnalyzeSideEffectRiskLevels(t *testing.T) {
	tests := []struct {
		name    string
		effects []models.SideEffect
		want    models.EffectRisk
	}{
		{"none", nil, models.EffectRiskNone},
		{"creation only", []models.SideEffect{{Type: models.EffectFileCreated}}, models.EffectRiskLow},
		{"modification", []models.SideEffect{{Type: models.EffectFileModified}}, models.EffectRiskMedium},
		{"setting change", []models.SideEffect{{Type: models.EffectSettingChanged}}, models.EffectRiskMedium},
		{"deletion dominates", []models.SideEffect{
			{Type: models.EffectFileModified},
			{Type: models.EffectFileDeleted},
		}, models.EffectRiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzeSideEffects(tt.effects)
			if got.RiskLevel != tt.want {
				t.Errorf("RiskLevel = %q, want %q", got.RiskLevel, tt.want)
			}
			if got.Total != len(tt.effects) {
				t.Errorf("Total = %d, want %d", got.Total, len(tt.effects))
			}
		})
	}
}

func TestMostSignificantEffectsCapped(t *testing.T) {
	var effects []models.SideEffect
	for i := 0; i < 8; i++ {
		effects = append(effects, models.SideEffect{Type: models.EffectFileModified, Severity: models.SeverityLow})
	}
	effects = append(effects, models.SideEffect{Type: models.EffectFileDeleted, Severity: models.SeverityMedium})

	got := analyzeSideEffects(effects)
	if len(got.MostSignificant) != maxSignificantEffects {
		t.Fatalf("MostSignificant = %d entries, want %d", len(got.MostSignificant), maxSignificantEffects)
	}
	if got.MostSignificant[0].Type != models.EffectFileDeleted {
		t.Error("Highest severity effect should rank first")
	}
}

func TestAnalyzeReturnValueSensitive(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		sensitive bool
	}{
		{"plain string", "hello", false},
		{"token in value", "Bearer token abc123", true},
		{"sensitive key", map[string]any{"apiKey": "x"}, true},
		{"nested password", map[string]any{"config": map[string]any{"db_password": "x"}}, true},
		{"clean object", map[string]any{"count": float64(3)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzeReturnValue(tt.value)
			if got.HasSensitiveData != tt.sensitive {
				t.Errorf("HasSensitiveData = %v, want %v", got.HasSensitiveData, tt.sensitive)
			}
			if !got.Serializable {
				t.Error("Expected serializable value")
			}
		})
	}
}

func TestAnalyzeReturnValueShape(t *testing.T) {
	got := analyzeReturnValue(map[string]any{
		"files": []any{map[string]any{"name": "a.go"}},
	})
	if got.Type != "object" {
		t.Errorf("Type = %q, want object", got.Type)
	}
	if got.Depth != 3 {
		t.Errorf("Depth = %d, want 3", got.Depth)
	}
	if got.EncodedSize == 0 {
		t.Error("Expected encoded size")
	}
}

func TestSensitiveReturnRaisesRisk(t *testing.T) {
	desc := &models.CommandDescriptor{ID: "auth.whoami", RiskTier: models.TierSafe}
	result := safeResult(10 * time.Millisecond)
	result.ReturnValue = map[string]any{"session_token": "abc"}

	analysis := Analyze(desc, result)
	if analysis.ReturnValue == nil || !analysis.ReturnValue.HasSensitiveData {
		t.Fatal("Expected sensitive return value detection")
	}
	if analysis.Risk.Score != 2 {
		t.Errorf("Score = %d, want 2", analysis.Risk.Score)
	}
	if analysis.Risk.OverallRisk != models.RiskMedium {
		t.Errorf("OverallRisk = %q, want medium", analysis.Risk.OverallRisk)
	}
}

func TestDeriveTags(t *testing.T) {
	desc := &models.CommandDescriptor{ID: "workspace.clean", Name: "Clean", RiskTier: models.TierModerate}
	result := &models.ExecutionResult{
		Success:  true,
		Duration: 20 * time.Millisecond,
		SideEffects: []models.SideEffect{
			{Type: models.EffectFileDeleted},
		},
	}
	analysis := Analyze(desc, result)
	tags := deriveTags(desc, result, analysis)

	want := []string{"workspace", "moderate", "fast", "success", "has-side-effects"}
	for _, w := range want {
		found := false
		for _, tag := range tags {
			if tag == w {
				found = true
			}
		}
		if !found {
			t.Errorf("Missing tag %q in %v", w, tags)
		}
	}
	var riskTag bool
	for _, tag := range tags {
		if strings.HasPrefix(tag, "risk:") {
			riskTag = true
		}
	}
	if !riskTag {
		t.Errorf("Missing risk tag in %v", tags)
	}
}

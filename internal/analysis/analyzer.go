// Package analysis wraps execution results with session context,
// performance/side-effect/return-value analysis, a composite risk score,
// and searchable, exportable storage.
package analysis

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// sensitivePattern flags likely sensitive content in key names and
// serialized values. It is a heuristic, not a security boundary.
var sensitivePattern = regexp.MustCompile(`(?i)(password|token|key|secret|credential|auth)`)

// maxSignificantEffects bounds the surfaced effect list.
const maxSignificantEffects = 5

// Analyzer captures execution results as durable, risk-scored TestResults.
type Analyzer struct {
	store    *Store
	sessions *SessionCollector
}

// NewAnalyzer builds an Analyzer over a result store and session collector.
func NewAnalyzer(store *Store, sessions *SessionCollector) *Analyzer {
	return &Analyzer{store: store, sessions: sessions}
}

// CaptureResult builds and stores the TestResult for one completed attempt.
func (a *Analyzer) CaptureResult(desc *models.CommandDescriptor, parameters map[string]any, result *models.ExecutionResult, notes string) (*models.TestResult, error) {
	session := a.sessions.Collect()
	analysis := Analyze(desc, result)

	tr := &models.TestResult{
		ID:         uuid.New().String(),
		CommandID:  desc.ID,
		Command:    desc.Name,
		Timestamp:  time.Now(),
		Parameters: parameters,
		Execution:  *result,
		Session:    session,
		Analysis:   analysis,
		Tags:       deriveTags(desc, result, analysis),
		Notes:      notes,
	}

	if err := a.store.Save(tr); err != nil {
		return nil, fmt.Errorf("storing test result: %w", err)
	}
	log.Printf("[Analyzer] Captured result %s for %s (risk %s)", tr.ID, desc.ID, analysis.Risk.OverallRisk)
	return tr, nil
}

// Result returns a stored result by id.
func (a *Analyzer) Result(id string) (*models.TestResult, error) {
	return a.store.Get(id)
}

// Search returns stored results matching the criteria.
func (a *Analyzer) Search(criteria SearchCriteria) ([]*models.TestResult, error) {
	return a.store.Search(criteria)
}

// Statistics aggregates the stored results.
func (a *Analyzer) Statistics() (*Statistics, error) {
	return a.store.Statistics()
}

// Analyze computes the full analysis for an execution outcome.
func Analyze(desc *models.CommandDescriptor, result *models.ExecutionResult) models.ResultAnalysis {
	perf := analyzePerformance(result.Duration)
	effects := analyzeSideEffects(result.SideEffects)
	var ret *models.ReturnValueAnalysis
	if result.ReturnValue != nil {
		r := analyzeReturnValue(result.ReturnValue)
		ret = &r
	}
	sensitive := ret != nil && ret.HasSensitiveData
	risk := assessRisk(desc.RiskTier, effects, result.Success, sensitive)

	return models.ResultAnalysis{
		Performance:     perf,
		SideEffects:     effects,
		ReturnValue:     ret,
		Risk:            risk,
		Recommendations: recommend(result, perf, risk),
	}
}

func analyzePerformance(d time.Duration) models.PerformanceAnalysis {
	var category models.DurationCategory
	switch {
	case d < 100*time.Millisecond:
		category = models.DurationFast
	case d < time.Second:
		category = models.DurationModerate
	case d < 5*time.Second:
		category = models.DurationSlow
	default:
		category = models.DurationVerySlow
	}
	return models.PerformanceAnalysis{Duration: d, Category: category}
}

func analyzeSideEffects(effects []models.SideEffect) models.SideEffectAnalysis {
	analysis := models.SideEffectAnalysis{
		Total:  len(effects),
		ByType: make(map[models.EffectType]int),
	}
	for _, e := range effects {
		analysis.ByType[e.Type]++
	}

	switch {
	case analysis.ByType[models.EffectFileDeleted] > 0:
		analysis.RiskLevel = models.EffectRiskHigh
	case analysis.ByType[models.EffectFileModified] > 0 || analysis.ByType[models.EffectSettingChanged] > 0:
		analysis.RiskLevel = models.EffectRiskMedium
	case len(effects) > 0:
		analysis.RiskLevel = models.EffectRiskLow
	default:
		analysis.RiskLevel = models.EffectRiskNone
	}

	ranked := append([]models.SideEffect(nil), effects...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return models.SeverityRank(ranked[i].Severity) > models.SeverityRank(ranked[j].Severity)
	})
	if len(ranked) > maxSignificantEffects {
		ranked = ranked[:maxSignificantEffects]
	}
	analysis.MostSignificant = ranked
	return analysis
}

func analyzeReturnValue(value any) models.ReturnValueAnalysis {
	analysis := models.ReturnValueAnalysis{
		Type:  valueType(value),
		Depth: nestingDepth(value),
	}
	encoded, err := json.Marshal(value)
	if err == nil {
		analysis.Serializable = true
		analysis.EncodedSize = len(encoded)
		if sensitivePattern.Match(encoded) {
			analysis.HasSensitiveData = true
		}
	}
	if !analysis.HasSensitiveData && hasSensitiveKeys(value) {
		analysis.HasSensitiveData = true
	}
	return analysis
}

func valueType(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return rv.Kind().String()
	}
}

func nestingDepth(value any) int {
	switch v := value.(type) {
	case map[string]any:
		max := 0
		for _, inner := range v {
			if d := nestingDepth(inner); d > max {
				max = d
			}
		}
		return max + 1
	case []any:
		max := 0
		for _, inner := range v {
			if d := nestingDepth(inner); d > max {
				max = d
			}
		}
		return max + 1
	default:
		return 0
	}
}

func hasSensitiveKeys(value any) bool {
	switch v := value.(type) {
	case map[string]any:
		for key, inner := range v {
			if sensitivePattern.MatchString(key) {
				return true
			}
			if hasSensitiveKeys(inner) {
				return true
			}
		}
	case []any:
		for _, inner := range v {
			if hasSensitiveKeys(inner) {
				return true
			}
		}
	}
	return false
}

// assessRisk computes the composite score and maps it to a tier:
// 0 very_low, 1 low, 2-3 medium, 4-5 high, 6+ very_high.
func assessRisk(tier models.RiskTier, effects models.SideEffectAnalysis, success, sensitive bool) models.RiskAssessment {
	score := 0
	var factors []string

	switch tier {
	case models.TierDestructive:
		score += 3
		factors = append(factors, "command is declared destructive")
	case models.TierModerate:
		score += 2
		factors = append(factors, "command is declared moderate risk")
	}

	switch effects.RiskLevel {
	case models.EffectRiskHigh:
		score += 3
		factors = append(factors, "high-risk side effects observed")
	case models.EffectRiskMedium:
		score += 2
		factors = append(factors, "workspace modifications observed")
	case models.EffectRiskLow:
		score++
		factors = append(factors, "side effects observed")
	}

	if !success {
		score++
		factors = append(factors, "execution failed")
	}
	if sensitive {
		score += 2
		factors = append(factors, "return value may contain sensitive data")
	}

	assessment := models.RiskAssessment{
		Score:       score,
		OverallRisk: riskTier(score),
		Factors:     factors,
	}
	assessment.AutomationSuitability = suitability(assessment.OverallRisk, success)

	if effects.Total > 0 {
		assessment.Precautions = append(assessment.Precautions, "create a workspace snapshot before running this command")
	}
	if sensitive {
		assessment.Precautions = append(assessment.Precautions, "sanitize the return value before logging or sharing it")
	}
	return assessment
}

func riskTier(score int) models.OverallRisk {
	switch {
	case score <= 0:
		return models.RiskVeryLow
	case score == 1:
		return models.RiskLow
	case score <= 3:
		return models.RiskMedium
	case score <= 5:
		return models.RiskHigh
	default:
		return models.RiskVeryHigh
	}
}

func suitability(risk models.OverallRisk, success bool) models.Suitability {
	switch {
	case risk == models.RiskVeryLow && success:
		return models.SuitabilityExcellent
	case risk == models.RiskLow && success:
		return models.SuitabilityGood
	case risk == models.RiskMedium:
		return models.SuitabilityFair
	case risk == models.RiskHigh:
		return models.SuitabilityPoor
	default:
		return models.SuitabilityUnsuitable
	}
}

func recommend(result *models.ExecutionResult, perf models.PerformanceAnalysis, risk models.RiskAssessment) []string {
	var recs []string
	if !result.Success {
		recs = append(recs, "execution failed; retry with different parameters")
	}
	if perf.Category == models.DurationVerySlow {
		recs = append(recs, "execution was very slow; consider extending the timeout")
	}
	if risk.OverallRisk == models.RiskHigh || risk.OverallRisk == models.RiskVeryHigh {
		recs = append(recs, "avoid unattended use of this command")
	}
	return recs
}

// deriveTags produces the searchable tag set for a captured result.
func deriveTags(desc *models.CommandDescriptor, result *models.ExecutionResult, analysis models.ResultAnalysis) []string {
	tags := []string{
		desc.Category(),
		string(desc.RiskTier),
		string(analysis.Performance.Category),
		"risk:" + string(analysis.Risk.OverallRisk),
	}
	if result.Success {
		tags = append(tags, "success")
	} else {
		tags = append(tags, "failure")
	}
	if analysis.SideEffects.Total > 0 {
		tags = append(tags, "has-side-effects")
	}
	if analysis.ReturnValue != nil && analysis.ReturnValue.HasSensitiveData {
		tags = append(tags, "sensitive-data")
	}
	return tags
}

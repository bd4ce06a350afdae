package models

import "time"

// TestSession is a best-effort snapshot of host and workspace context at
// capture time. Inaccessible fields are left at their zero value.
type TestSession struct {
	HostVersion       string         `json:"host_version"`
	Hostname          string         `json:"hostname,omitempty"`
	Platform          string         `json:"platform,omitempty"`
	PlatformVersion   string         `json:"platform_version,omitempty"`
	UptimeSeconds     uint64         `json:"uptime_seconds,omitempty"`
	MemoryUsedPercent float64        `json:"memory_used_percent,omitempty"`
	WorkspaceRoots    []string       `json:"workspace_roots,omitempty"`
	OpenDocumentCount int            `json:"open_document_count"`
	Settings          map[string]any `json:"settings,omitempty"`
	CapturedAt        time.Time      `json:"captured_at"`
}

// DurationCategory buckets execution duration.
type DurationCategory string

const (
	DurationFast     DurationCategory = "fast"
	DurationModerate DurationCategory = "moderate"
	DurationSlow     DurationCategory = "slow"
	DurationVerySlow DurationCategory = "very_slow"
)

// PerformanceAnalysis summarizes execution timing.
type PerformanceAnalysis struct {
	Duration time.Duration    `json:"duration"`
	Category DurationCategory `json:"category"`
}

// EffectRisk is the aggregate risk level derived from observed effects.
type EffectRisk string

const (
	EffectRiskNone   EffectRisk = "none"
	EffectRiskLow    EffectRisk = "low"
	EffectRiskMedium EffectRisk = "medium"
	EffectRiskHigh   EffectRisk = "high"
)

// SideEffectAnalysis tallies observed effects and their aggregate risk.
type SideEffectAnalysis struct {
	Total           int                `json:"total"`
	ByType          map[EffectType]int `json:"by_type,omitempty"`
	RiskLevel       EffectRisk         `json:"risk_level"`
	MostSignificant []SideEffect       `json:"most_significant,omitempty"`
}

// ReturnValueAnalysis classifies a command's return value.
type ReturnValueAnalysis struct {
	Type             string `json:"type"`
	Depth            int    `json:"depth"`
	HasSensitiveData bool   `json:"has_sensitive_data"`
	Serializable     bool   `json:"serializable"`
	EncodedSize      int    `json:"encoded_size"`
}

// OverallRisk is the composite risk tier of an attempt.
type OverallRisk string

const (
	RiskVeryLow  OverallRisk = "very_low"
	RiskLow      OverallRisk = "low"
	RiskMedium   OverallRisk = "medium"
	RiskHigh     OverallRisk = "high"
	RiskVeryHigh OverallRisk = "very_high"
)

// Suitability judges whether a command is safe to invoke unattended.
type Suitability string

const (
	SuitabilityExcellent  Suitability = "excellent"
	SuitabilityGood       Suitability = "good"
	SuitabilityFair       Suitability = "fair"
	SuitabilityPoor       Suitability = "poor"
	SuitabilityUnsuitable Suitability = "unsuitable"
)

// RiskAssessment is the composite score and derived tiers for an attempt.
type RiskAssessment struct {
	Score                 int         `json:"score"`
	OverallRisk           OverallRisk `json:"overall_risk"`
	AutomationSuitability Suitability `json:"automation_suitability"`
	Factors               []string    `json:"factors,omitempty"`
	Precautions           []string    `json:"precautions,omitempty"`
}

// ResultAnalysis bundles the sub-analyses for a captured result.
type ResultAnalysis struct {
	Performance     PerformanceAnalysis  `json:"performance"`
	SideEffects     SideEffectAnalysis   `json:"side_effects"`
	ReturnValue     *ReturnValueAnalysis `json:"return_value,omitempty"`
	Risk            RiskAssessment       `json:"risk"`
	Recommendations []string             `json:"recommendations,omitempty"`
}

// TestResult is the durable record of one captured attempt. It is created
// exactly once and never mutated after creation.
type TestResult struct {
	ID         string          `json:"id"`
	CommandID  string          `json:"command_id"`
	Command    string          `json:"command"`
	Timestamp  time.Time       `json:"timestamp"`
	Parameters map[string]any  `json:"parameters,omitempty"`
	Execution  ExecutionResult `json:"execution"`
	Session    TestSession     `json:"session"`
	Analysis   ResultAnalysis  `json:"analysis"`
	Tags       []string        `json:"tags,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

package models

import "time"

// EffectType is the kind of observed or inferred workspace change.
type EffectType string

const (
	EffectFileCreated    EffectType = "file_created"
	EffectFileModified   EffectType = "file_modified"
	EffectFileDeleted    EffectType = "file_deleted"
	EffectSettingChanged EffectType = "setting_changed"
	EffectViewOpened     EffectType = "view_opened"
	EffectViewClosed     EffectType = "view_closed"
)

// Severity ranks the impact of a side effect.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank orders severities for sorting, critical highest.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Category groups side effects by the subsystem they touch.
type Category string

const (
	CategoryFileSystem Category = "file_system"
	CategoryEditor     Category = "editor"
	CategorySettings   Category = "settings"
	CategoryViews      Category = "views"
)

// DefaultSeverity returns the pre-assigned severity for an effect type.
func DefaultSeverity(t EffectType) Severity {
	switch t {
	case EffectFileDeleted, EffectSettingChanged:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// CategoryFor maps an effect type to its category.
func CategoryFor(t EffectType) Category {
	switch t {
	case EffectFileCreated, EffectFileModified, EffectFileDeleted:
		return CategoryFileSystem
	case EffectSettingChanged:
		return CategorySettings
	case EffectViewOpened, EffectViewClosed:
		return CategoryViews
	default:
		return CategoryEditor
	}
}

// EffectDetails carries optional before/after measurements for an effect.
type EffectDetails struct {
	OldSize      *int64 `json:"old_size,omitempty"`
	NewSize      *int64 `json:"new_size,omitempty"`
	OldHash      string `json:"old_hash,omitempty"`
	NewHash      string `json:"new_hash,omitempty"`
	OldLineCount *int   `json:"old_line_count,omitempty"`
	NewLineCount *int   `json:"new_line_count,omitempty"`
	OldValue     any    `json:"old_value,omitempty"`
	NewValue     any    `json:"new_value,omitempty"`
}

// SideEffect is one observed or diff-inferred change attributable to an
// attempt.
type SideEffect struct {
	Type        EffectType     `json:"type"`
	Resource    string         `json:"resource"`
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`
	Category    Category       `json:"category"`
	Details     *EffectDetails `json:"details,omitempty"`
}

package models

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// RiskTier is the declared risk classification of a command.
type RiskTier string

const (
	// TierSafe indicates a command with no expected side effects.
	TierSafe RiskTier = "safe"
	// TierModerate indicates a command that may modify workspace state.
	TierModerate RiskTier = "moderate"
	// TierDestructive indicates a command that may delete or overwrite data.
	TierDestructive RiskTier = "destructive"
)

// Precondition is a context requirement checked before execution.
type Precondition string

const (
	// PrecondWorkspaceOpen requires at least one workspace root.
	PrecondWorkspaceOpen Precondition = "workspace_open"
	// PrecondActiveDocument requires an active document in the host.
	PrecondActiveDocument Precondition = "active_document"
)

// ParamKind identifies one member of the closed parameter type set.
type ParamKind string

const (
	KindString       ParamKind = "string"
	KindNumber       ParamKind = "number"
	KindBoolean      ParamKind = "boolean"
	KindObject       ParamKind = "object"
	KindArray        ParamKind = "array"
	KindLocator      ParamKind = "uri"
	KindLocatorArray ParamKind = "uri[]"
	KindUnion        ParamKind = "union"
	// KindOther covers unrecognized type names; values pass through unvalidated.
	KindOther ParamKind = "other"
)

// ParameterType is a resolved parameter type. Union types carry their
// members in declaration order and resolve via first match.
type ParameterType struct {
	Kind    ParamKind
	Name    string
	Members []ParameterType
}

// ParseParameterType resolves a declared type string, including
// "|"-delimited unions, into a ParameterType.
func ParseParameterType(s string) ParameterType {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "|") {
		parts := strings.Split(s, "|")
		members := make([]ParameterType, 0, len(parts))
		for _, p := range parts {
			members = append(members, ParseParameterType(p))
		}
		return ParameterType{Kind: KindUnion, Name: s, Members: members}
	}

	switch s {
	case "string":
		return ParameterType{Kind: KindString, Name: s}
	case "number":
		return ParameterType{Kind: KindNumber, Name: s}
	case "boolean":
		return ParameterType{Kind: KindBoolean, Name: s}
	case "object":
		return ParameterType{Kind: KindObject, Name: s}
	case "array":
		return ParameterType{Kind: KindArray, Name: s}
	case "uri", "resource":
		return ParameterType{Kind: KindLocator, Name: s}
	case "uri[]", "resource[]":
		return ParameterType{Kind: KindLocatorArray, Name: s}
	default:
		return ParameterType{Kind: KindOther, Name: s}
	}
}

func (t ParameterType) String() string {
	return t.Name
}

// ParameterSpec describes one parameter in a command signature. The Type
// field holds the declared type string ("string", "uri", "string|uri", ...).
type ParameterSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// CommandDescriptor is immutable metadata about a target command. It is
// created once at discovery time and never modified afterward.
type CommandDescriptor struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	RiskTier      RiskTier        `json:"risk_tier"`
	Preconditions []Precondition  `json:"preconditions,omitempty"`
	Signature     []ParameterSpec `json:"signature,omitempty"`
	ShellTemplate string          `json:"shell_template,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Category derives a grouping tag from the command id, using the segment
// before the first dot ("workspace.clean" -> "workspace").
func (d *CommandDescriptor) Category() string {
	if i := strings.Index(d.ID, "."); i > 0 {
		return d.ID[:i]
	}
	return d.ID
}

// Locator identifies a workspace resource by scheme and path.
type Locator struct {
	Scheme string `json:"scheme"`
	Path   string `json:"path"`
}

func (l Locator) String() string {
	return l.Scheme + "://" + l.Path
}

// LocatorFromPath builds a file locator from an absolute or relative path.
func LocatorFromPath(p string) Locator {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return Locator{Scheme: "file", Path: p}
}

// ParseLocator interprets a string as a filesystem path or, failing that,
// as a URI. Strings with no scheme and no path shape are rejected.
func ParseLocator(s string) (Locator, bool) {
	if s == "" {
		return Locator{}, false
	}
	if filepath.IsAbs(s) || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
		return LocatorFromPath(s), true
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return Locator{}, false
	}
	path := u.Path
	if u.Host != "" {
		path = u.Host + u.Path
	}
	if path == "" && u.Opaque != "" {
		path = u.Opaque
	}
	if path == "" {
		return Locator{}, false
	}
	return Locator{Scheme: u.Scheme, Path: path}, true
}

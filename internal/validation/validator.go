// Package validation type-checks and coerces raw command arguments against a
// declared parameter signature.
package validation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// Issue codes reported by the validator.
const (
	CodeRequiredMissing     = "REQUIRED_PARAMETER_MISSING"
	CodeEmptyRequiredString = "EMPTY_REQUIRED_STRING"
	CodeStringTooLong       = "STRING_TOO_LONG"
	CodeTypeConversion      = "TYPE_CONVERSION"
	CodeTypeMismatch        = "TYPE_MISMATCH"
	CodeInvalidURI          = "INVALID_URI_FORMAT"
	CodeInvalidURIElement   = "INVALID_URI_ARRAY_ELEMENT"
	CodeUnionMismatch       = "UNION_TYPE_MISMATCH"
	CodeUnknownType         = "UNKNOWN_TYPE"
	CodeUnexpectedParameter = "UNEXPECTED_PARAMETER"
	CodeFileNotFound        = "FILE_NOT_FOUND"
)

// maxStringLength is the advisory length ceiling for string parameters.
const maxStringLength = 10000

// Issue is one validation error or warning.
type Issue struct {
	Parameter string `json:"parameter"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Outcome is the result of validating a value map against a signature.
type Outcome struct {
	Valid    bool           `json:"valid"`
	Errors   []Issue        `json:"errors"`
	Warnings []Issue        `json:"warnings"`
	Coerced  map[string]any `json:"coerced_values"`
}

// Prober answers advisory existence checks for resource locators.
type Prober interface {
	Exists(loc models.Locator) bool
}

// Validator validates raw parameter maps against command signatures.
// Validation is pure per parameter; no parameter's outcome depends on
// another's.
type Validator struct {
	prober Prober
}

// New builds a Validator. The prober may be nil, which skips existence
// checks.
func New(prober Prober) *Validator {
	return &Validator{prober: prober}
}

// Validate checks values against signature, coercing where the declared
// type allows it. Errors and warnings accumulate across parameters; the
// outcome is valid iff no errors were recorded.
func (v *Validator) Validate(signature []models.ParameterSpec, values map[string]any) Outcome {
	out := Outcome{
		Errors:   []Issue{},
		Warnings: []Issue{},
		Coerced:  make(map[string]any),
	}

	declared := make(map[string]bool, len(signature))
	for _, spec := range signature {
		declared[spec.Name] = true
		value, present := values[spec.Name]
		if !present || value == nil {
			if spec.Required {
				out.Errors = append(out.Errors, Issue{
					Parameter: spec.Name,
					Code:      CodeRequiredMissing,
					Message:   fmt.Sprintf("required parameter %q is missing", spec.Name),
				})
			}
			continue
		}

		ptype := models.ParseParameterType(spec.Type)
		coerced, issues, ok := v.checkValue(spec, ptype, value)
		for _, issue := range issues {
			if issueIsError(issue.Code) {
				out.Errors = append(out.Errors, issue)
			} else {
				out.Warnings = append(out.Warnings, issue)
			}
		}
		if !ok {
			continue
		}
		out.Coerced[spec.Name] = coerced
		out.Warnings = append(out.Warnings, v.ruleChecks(spec.Name, ptype, coerced)...)
	}

	for name := range values {
		if !declared[name] {
			out.Warnings = append(out.Warnings, Issue{
				Parameter: name,
				Code:      CodeUnexpectedParameter,
				Message:   fmt.Sprintf("parameter %q is not declared in the command signature", name),
			})
		}
	}

	out.Valid = len(out.Errors) == 0
	return out
}

func issueIsError(code string) bool {
	switch code {
	case CodeRequiredMissing, CodeEmptyRequiredString, CodeTypeMismatch,
		CodeInvalidURI, CodeInvalidURIElement, CodeUnionMismatch:
		return true
	}
	return false
}

// checkValue validates one value against a resolved type. It returns the
// coerced value, any issues, and whether type validation passed.
func (v *Validator) checkValue(spec models.ParameterSpec, ptype models.ParameterType, value any) (any, []Issue, bool) {
	switch ptype.Kind {
	case models.KindString:
		return v.checkString(spec, value)
	case models.KindNumber:
		return v.checkNumber(spec.Name, value)
	case models.KindBoolean:
		return v.checkBoolean(spec.Name, value)
	case models.KindObject:
		return v.checkObject(spec.Name, value)
	case models.KindArray:
		return v.checkArray(spec.Name, value)
	case models.KindLocator:
		return v.checkLocator(spec.Name, value)
	case models.KindLocatorArray:
		return v.checkLocatorArray(spec.Name, value)
	case models.KindUnion:
		return v.checkUnion(spec, ptype, value)
	default:
		return value, []Issue{{
			Parameter: spec.Name,
			Code:      CodeUnknownType,
			Message:   fmt.Sprintf("unrecognized type %q; value passed through unvalidated", ptype.Name),
		}}, true
	}
}

func (v *Validator) checkString(spec models.ParameterSpec, value any) (any, []Issue, bool) {
	var issues []Issue
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprintf("%v", value)
		issues = append(issues, Issue{
			Parameter: spec.Name,
			Code:      CodeTypeConversion,
			Message:   fmt.Sprintf("value of type %T converted to string", value),
		})
	}
	if spec.Required && s == "" {
		issues = append(issues, Issue{
			Parameter: spec.Name,
			Code:      CodeEmptyRequiredString,
			Message:   fmt.Sprintf("required string parameter %q is empty", spec.Name),
		})
		return nil, issues, false
	}
	if len(s) > maxStringLength {
		issues = append(issues, Issue{
			Parameter: spec.Name,
			Code:      CodeStringTooLong,
			Message:   fmt.Sprintf("string value is %d characters long", len(s)),
		})
	}
	return s, issues, true
}

func (v *Validator) checkNumber(name string, value any) (any, []Issue, bool) {
	switch n := value.(type) {
	case float64:
		return n, nil, true
	case float32:
		return float64(n), nil, true
	case int:
		return float64(n), nil, true
	case int32:
		return float64(n), nil, true
	case int64:
		return float64(n), nil, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, []Issue{{
				Parameter: name,
				Code:      CodeTypeMismatch,
				Message:   fmt.Sprintf("value %q is not a number", n),
			}}, false
		}
		return parsed, []Issue{{
			Parameter: name,
			Code:      CodeTypeConversion,
			Message:   fmt.Sprintf("string %q converted to number", n),
		}}, true
	default:
		return nil, []Issue{{
			Parameter: name,
			Code:      CodeTypeMismatch,
			Message:   fmt.Sprintf("value of type %T is not a number", value),
		}}, false
	}
}

func (v *Validator) checkBoolean(name string, value any) (any, []Issue, bool) {
	conversion := func(result bool) (any, []Issue, bool) {
		return result, []Issue{{
			Parameter: name,
			Code:      CodeTypeConversion,
			Message:   fmt.Sprintf("value %v converted to boolean", value),
		}}, true
	}
	switch b := value.(type) {
	case bool:
		return b, nil, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1":
			return conversion(true)
		case "false", "0":
			return conversion(false)
		}
	case float64:
		if b == 1 {
			return conversion(true)
		}
		if b == 0 {
			return conversion(false)
		}
	case int:
		if b == 1 {
			return conversion(true)
		}
		if b == 0 {
			return conversion(false)
		}
	}
	return nil, []Issue{{
		Parameter: name,
		Code:      CodeTypeMismatch,
		Message:   fmt.Sprintf("value %v is not a boolean", value),
	}}, false
}

func (v *Validator) checkObject(name string, value any) (any, []Issue, bool) {
	if _, ok := value.(map[string]any); ok {
		return value, nil, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct {
		return value, nil, true
	}
	return nil, []Issue{{
		Parameter: name,
		Code:      CodeTypeMismatch,
		Message:   fmt.Sprintf("value of type %T is not an object", value),
	}}, false
}

func (v *Validator) checkArray(name string, value any) (any, []Issue, bool) {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return value, nil, true
	}
	return nil, []Issue{{
		Parameter: name,
		Code:      CodeTypeMismatch,
		Message:   fmt.Sprintf("value of type %T is not an array", value),
	}}, false
}

func (v *Validator) checkLocator(name string, value any) (any, []Issue, bool) {
	switch loc := value.(type) {
	case models.Locator:
		return loc, nil, true
	case *models.Locator:
		return *loc, nil, true
	case string:
		parsed, ok := models.ParseLocator(loc)
		if !ok {
			return nil, []Issue{{
				Parameter: name,
				Code:      CodeInvalidURI,
				Message:   fmt.Sprintf("value %q is not a valid path or URI", loc),
			}}, false
		}
		return parsed, nil, true
	default:
		return nil, []Issue{{
			Parameter: name,
			Code:      CodeInvalidURI,
			Message:   fmt.Sprintf("value of type %T cannot be interpreted as a resource locator", value),
		}}, false
	}
}

func (v *Validator) checkLocatorArray(name string, value any) (any, []Issue, bool) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, []Issue{{
			Parameter: name,
			Code:      CodeTypeMismatch,
			Message:   fmt.Sprintf("value of type %T is not an array of resource locators", value),
		}}, false
	}
	out := make([]models.Locator, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		coerced, _, ok := v.checkLocator(name, elem)
		if !ok {
			return nil, []Issue{{
				Parameter: name,
				Code:      CodeInvalidURIElement,
				Message:   fmt.Sprintf("element %d is not a valid resource locator", i),
			}}, false
		}
		out = append(out, coerced.(models.Locator))
	}
	return out, nil, true
}

// checkUnion tries each member left to right; the first member that
// validates wins and carries its warnings.
func (v *Validator) checkUnion(spec models.ParameterSpec, ptype models.ParameterType, value any) (any, []Issue, bool) {
	for _, member := range ptype.Members {
		if member.Kind == models.KindUnion {
			continue
		}
		coerced, issues, ok := v.checkValue(spec, member, value)
		if ok {
			var warnings []Issue
			for _, issue := range issues {
				if !issueIsError(issue.Code) {
					warnings = append(warnings, issue)
				}
			}
			return coerced, warnings, true
		}
	}
	names := make([]string, 0, len(ptype.Members))
	for _, member := range ptype.Members {
		names = append(names, member.Name)
	}
	return nil, []Issue{{
		Parameter: spec.Name,
		Code:      CodeUnionMismatch,
		Message:   fmt.Sprintf("value matches none of the union candidates: %s", strings.Join(names, ", ")),
	}}, false
}

// ruleChecks runs advisory checks that only apply after type validation
// passed. Existence probes warn, never error.
func (v *Validator) ruleChecks(name string, ptype models.ParameterType, coerced any) []Issue {
	if v.prober == nil {
		return nil
	}
	var warnings []Issue
	probe := func(loc models.Locator) {
		if loc.Scheme == "file" && !v.prober.Exists(loc) {
			warnings = append(warnings, Issue{
				Parameter: name,
				Code:      CodeFileNotFound,
				Message:   fmt.Sprintf("resource %s does not exist", loc.Path),
			})
		}
	}
	switch c := coerced.(type) {
	case models.Locator:
		probe(c)
	case []models.Locator:
		for _, loc := range c {
			probe(loc)
		}
	}
	return warnings
}

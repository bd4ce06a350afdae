package executor

import (
	"strings"

	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// transientPatterns maps message substrings to error classifications.
// Matching errors are considered recoverable and candidates for
// caller-driven retry.
var transientPatterns = []struct {
	substr string
	typ    models.ErrorType
}{
	{"timeout", models.ErrorTimeout},
	{"timed out", models.ErrorTimeout},
	{"cancelled", models.ErrorCancelled},
	{"canceled", models.ErrorCancelled},
	{"not found", models.ErrorNotFound},
	{"no such file", models.ErrorNotFound},
	{"permission denied", models.ErrorPermissionDenied},
	{"invalid parameter", models.ErrorInvalidParameter},
	{"invalid argument", models.ErrorInvalidParameter},
}

// ClassifyError converts a raw invocation error into a structured
// ExecutionError by pattern-matching the message against known transient
// categories. Unmatched errors are surfaced as non-recoverable.
func ClassifyError(err error) *models.ExecutionError {
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, p := range transientPatterns {
		if strings.Contains(lower, p.substr) {
			return &models.ExecutionError{
				Message:     msg,
				Type:        p.typ,
				Recoverable: true,
			}
		}
	}
	return &models.ExecutionError{
		Message:     msg,
		Type:        models.ErrorUnknown,
		Recoverable: false,
	}
}

package analysis

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// ExportFormat selects the encoding for exported results.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatCSV      ExportFormat = "csv"
	FormatMarkdown ExportFormat = "markdown"
)

// ErrUnsupportedFormat is returned for unknown export formats.
type ErrUnsupportedFormat struct {
	Format string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported export format %q", e.Format)
}

// Export encodes the results matching the criteria into a flat document for
// offline review. Persistence of the document is the caller's concern.
func (a *Analyzer) Export(format ExportFormat, criteria SearchCriteria) (string, error) {
	results, err := a.store.Search(criteria)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatJSON:
		encoded, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	case FormatCSV:
		return exportCSV(results)
	case FormatMarkdown:
		return exportMarkdown(results), nil
	default:
		return "", &ErrUnsupportedFormat{Format: string(format)}
	}
}

func exportCSV(results []*models.TestResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"id", "command_id", "command", "success", "risk", "suitability", "duration_ms", "side_effects", "timestamp", "tags"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, tr := range results {
		row := []string{
			tr.ID,
			tr.CommandID,
			tr.Command,
			strconv.FormatBool(tr.Execution.Success),
			string(tr.Analysis.Risk.OverallRisk),
			string(tr.Analysis.Risk.AutomationSuitability),
			strconv.FormatInt(tr.Execution.Duration.Milliseconds(), 10),
			strconv.Itoa(tr.Analysis.SideEffects.Total),
			tr.Timestamp.Format("2006-01-02 15:04:05"),
			strings.Join(tr.Tags, " "),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func exportMarkdown(results []*models.TestResult) string {
	var b strings.Builder
	b.WriteString("# Test Results\n\n")
	b.WriteString("| Command | Success | Risk | Suitability | Duration | Side Effects | Timestamp |\n")
	b.WriteString("|---------|---------|------|-------------|----------|--------------|----------|\n")
	for _, tr := range results {
		fmt.Fprintf(&b, "| %s | %t | %s | %s | %v | %d | %s |\n",
			tr.CommandID,
			tr.Execution.Success,
			tr.Analysis.Risk.OverallRisk,
			tr.Analysis.Risk.AutomationSuitability,
			tr.Execution.Duration,
			tr.Analysis.SideEffects.Total,
			tr.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}
	return b.String()
}

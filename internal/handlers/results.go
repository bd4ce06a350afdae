package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/cmdprobe/internal/analysis"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// ResultsHandler exposes captured test results.
type ResultsHandler struct {
	analyzer *analysis.Analyzer
}

// NewResultsHandler creates a new ResultsHandler instance.
func NewResultsHandler(analyzer *analysis.Analyzer) *ResultsHandler {
	return &ResultsHandler{analyzer: analyzer}
}

// Get returns one captured result by id.
func (h *ResultsHandler) Get(c *gin.Context) {
	tr, err := h.analyzer.Result(c.Param("id"))
	if err != nil {
		if errors.Is(err, analysis.ErrResultNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tr)
}

// Search returns captured results matching the query filters.
func (h *ResultsHandler) Search(c *gin.Context) {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.analyzer.Search(criteria)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, results)
}

// Statistics returns aggregates over all captured results.
func (h *ResultsHandler) Statistics(c *gin.Context) {
	stats, err := h.analyzer.Statistics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Export encodes matching results in the requested flat format.
func (h *ResultsHandler) Export(c *gin.Context) {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format := analysis.ExportFormat(c.DefaultQuery("format", "json"))
	document, err := h.analyzer.Export(format, criteria)
	if err != nil {
		var unsupported *analysis.ErrUnsupportedFormat
		if errors.As(err, &unsupported) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	contentType := "application/json"
	switch format {
	case analysis.FormatCSV:
		contentType = "text/csv"
	case analysis.FormatMarkdown:
		contentType = "text/markdown"
	}
	c.Data(http.StatusOK, contentType, []byte(document))
}

func criteriaFromQuery(c *gin.Context) (analysis.SearchCriteria, error) {
	criteria := analysis.SearchCriteria{
		CommandID: c.Query("command_id"),
		Risk:      models.OverallRisk(c.Query("risk")),
		Tags:      c.QueryArray("tag"),
	}

	if raw := c.Query("success"); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			return criteria, err
		}
		criteria.Success = &success
	}
	if raw := c.Query("has_notes"); raw != "" {
		hasNotes, err := strconv.ParseBool(raw)
		if err != nil {
			return criteria, err
		}
		criteria.HasNotes = &hasNotes
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return criteria, err
		}
		criteria.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return criteria, err
		}
		criteria.To = &to
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return criteria, err
		}
		criteria.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return criteria, err
		}
		criteria.Offset = offset
	}
	return criteria, nil
}

package analysis

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pandeptwidyaop/cmdprobe/internal/database"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// ErrResultNotFound is returned when a result id is unknown.
var ErrResultNotFound = errors.New("test result not found")

// Store persists TestResults in SQLite. The full record is stored as a JSON
// payload alongside indexed columns used for filtering.
type Store struct {
	db *database.DB
}

// NewStore builds a Store over an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// SearchCriteria filters stored results. Zero-valued fields are ignored.
type SearchCriteria struct {
	CommandID string
	Success   *bool
	Risk      models.OverallRisk
	Tags      []string
	From      *time.Time
	To        *time.Time
	HasNotes  *bool
	Limit     int
	Offset    int
}

// Statistics aggregates the stored result set.
type Statistics struct {
	TotalResults     int            `json:"total_results"`
	SuccessRate      float64        `json:"success_rate"`
	CommandsCovered  int            `json:"commands_covered"`
	AverageDuration  time.Duration  `json:"average_duration"`
	RiskDistribution map[string]int `json:"risk_distribution"`
	TagDistribution  map[string]int `json:"tag_distribution"`
}

// Save inserts a result. Results are write-once; duplicate ids error.
func (s *Store) Save(tr *models.TestResult) error {
	payload, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("encoding test result: %w", err)
	}
	tags, err := json.Marshal(tr.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO test_results (id, command_id, command_name, success, risk, duration_ms, has_notes, tags, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tr.ID, tr.CommandID, tr.Command, tr.Execution.Success, string(tr.Analysis.Risk.OverallRisk),
		tr.Execution.Duration.Milliseconds(), tr.Notes != "", string(tags), tr.Timestamp, string(payload))
	return err
}

// Get returns one result by id.
func (s *Store) Get(id string) (*models.TestResult, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM test_results WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	var tr models.TestResult
	if err := json.Unmarshal([]byte(payload), &tr); err != nil {
		return nil, fmt.Errorf("decoding test result %s: %w", id, err)
	}
	return &tr, nil
}

// Search returns results matching the criteria, newest first.
func (s *Store) Search(criteria SearchCriteria) ([]*models.TestResult, error) {
	query := "SELECT payload FROM test_results WHERE 1=1"
	var args []any

	if criteria.CommandID != "" {
		query += " AND command_id = ?"
		args = append(args, criteria.CommandID)
	}
	if criteria.Success != nil {
		query += " AND success = ?"
		args = append(args, *criteria.Success)
	}
	if criteria.Risk != "" {
		query += " AND risk = ?"
		args = append(args, string(criteria.Risk))
	}
	if criteria.HasNotes != nil {
		query += " AND has_notes = ?"
		args = append(args, *criteria.HasNotes)
	}
	if criteria.From != nil {
		query += " AND created_at >= ?"
		args = append(args, *criteria.From)
	}
	if criteria.To != nil {
		query += " AND created_at <= ?"
		args = append(args, *criteria.To)
	}
	for _, tag := range criteria.Tags {
		query += " AND tags LIKE ?"
		args = append(args, "%"+`"`+tag+`"`+"%")
	}
	query += " ORDER BY created_at DESC"
	limit := criteria.Limit
	if limit == 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, criteria.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*models.TestResult, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var tr models.TestResult
		if err := json.Unmarshal([]byte(payload), &tr); err != nil {
			return nil, fmt.Errorf("decoding stored result: %w", err)
		}
		results = append(results, &tr)
	}
	return results, rows.Err()
}

// Statistics aggregates totals, success rate, command coverage, average
// duration, and risk/tag distributions over all stored results.
func (s *Store) Statistics() (*Statistics, error) {
	stats := &Statistics{
		RiskDistribution: make(map[string]int),
		TagDistribution:  make(map[string]int),
	}

	var successCount int
	var avgDurationMS sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
		       COUNT(DISTINCT command_id),
		       AVG(duration_ms)
		FROM test_results
	`).Scan(&stats.TotalResults, &successCount, &stats.CommandsCovered, &avgDurationMS)
	if err != nil {
		return nil, err
	}
	if stats.TotalResults > 0 {
		stats.SuccessRate = float64(successCount) / float64(stats.TotalResults)
	}
	if avgDurationMS.Valid {
		stats.AverageDuration = time.Duration(avgDurationMS.Float64 * float64(time.Millisecond))
	}

	rows, err := s.db.Query("SELECT risk, COUNT(*) FROM test_results GROUP BY risk")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var risk string
		var count int
		if err := rows.Scan(&risk, &count); err != nil {
			return nil, err
		}
		stats.RiskDistribution[risk] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagRows, err := s.db.Query("SELECT tags FROM test_results")
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var raw string
		if err := tagRows.Scan(&raw); err != nil {
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			continue
		}
		for _, tag := range tags {
			stats.TagDistribution[tag]++
		}
	}
	return stats, tagRows.Err()
}

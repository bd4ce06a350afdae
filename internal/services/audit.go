// Package services holds cross-cutting application services.
package services

import (
	"encoding/json"
	"log"

	"github.com/pandeptwidyaop/cmdprobe/internal/database"
)

// AuditService records an append-only trail of operator actions.
type AuditService struct {
	db *database.DB
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(db *database.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditLog is one audit entry to be recorded.
type AuditLog struct {
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
}

// Log records an audit entry. Failures are logged, never propagated; the
// audit trail must not break the operation it describes.
func (s *AuditService) Log(entry AuditLog) {
	var detailsJSON string
	if entry.Details != nil {
		if bytes, err := json.Marshal(entry.Details); err == nil {
			detailsJSON = string(bytes)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_logs (action, resource_type, resource_id, details)
		VALUES (?, ?, ?, ?)
	`, entry.Action, entry.ResourceType, entry.ResourceID, detailsJSON)
	if err != nil {
		log.Printf("[Audit] Failed to record %s on %s/%s: %v", entry.Action, entry.ResourceType, entry.ResourceID, err)
	}
}

// LogExecute records a command execution attempt.
func (s *AuditService) LogExecute(commandID, commandName string, success bool) {
	s.Log(AuditLog{
		Action:       "execute",
		ResourceType: "command",
		ResourceID:   commandID,
		Details: map[string]any{
			"command_name": commandName,
			"success":      success,
		},
	})
}

// LogSnapshotRestore records a snapshot restore.
func (s *AuditService) LogSnapshotRestore(snapshotID string) {
	s.Log(AuditLog{
		Action:       "restore",
		ResourceType: "snapshot",
		ResourceID:   snapshotID,
	})
}

// LogCommandChange records a registry mutation (create, update, delete).
func (s *AuditService) LogCommandChange(action, commandID, commandName string) {
	s.Log(AuditLog{
		Action:       action,
		ResourceType: "command",
		ResourceID:   commandID,
		Details: map[string]any{
			"command_name": commandName,
		},
	})
}

// AuditLogEntry is one audit record read back from the database.
type AuditLogEntry struct {
	ID           int64  `json:"id"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Details      string `json:"details"`
	CreatedAt    string `json:"created_at"`
}

// GetLogs retrieves audit entries with pagination, newest first.
func (s *AuditService) GetLogs(limit, offset int) ([]AuditLogEntry, error) {
	if limit == 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, action, resource_type, resource_id, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]AuditLogEntry, 0)
	for rows.Next() {
		var entry AuditLogEntry
		var resourceID, details *string
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.ResourceType, &resourceID, &details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if resourceID != nil {
			entry.ResourceID = *resourceID
		}
		if details != nil {
			entry.Details = *details
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

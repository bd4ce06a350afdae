// Package registry persists command descriptors and dispatches registered
// commands to the shell.
package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pandeptwidyaop/cmdprobe/internal/database"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// ErrCommandNotFound is returned when a command id is unknown.
var ErrCommandNotFound = errors.New("command not found")

// Store provides CRUD over registered command descriptors.
type Store struct {
	db *database.DB
}

// NewStore builds a Store over an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create registers a new command descriptor. An empty id gets a generated
// UUID. The descriptor is immutable through the engine after creation;
// Update exists for registry maintenance only.
func (s *Store) Create(desc *models.CommandDescriptor) (*models.CommandDescriptor, error) {
	if desc.ID == "" {
		desc.ID = uuid.New().String()
	}
	if desc.RiskTier == "" {
		desc.RiskTier = models.TierSafe
	}
	preconditions, err := json.Marshal(desc.Preconditions)
	if err != nil {
		return nil, err
	}
	signature, err := json.Marshal(desc.Signature)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`
		INSERT INTO commands (id, name, description, risk_tier, preconditions, signature, shell_template)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, desc.ID, desc.Name, desc.Description, string(desc.RiskTier), string(preconditions), string(signature), desc.ShellTemplate)
	if err != nil {
		return nil, err
	}
	return s.Get(desc.ID)
}

// Get returns one descriptor by id.
func (s *Store) Get(id string) (*models.CommandDescriptor, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, risk_tier, preconditions, signature, shell_template, created_at
		FROM commands WHERE id = ?
	`, id)
	return scanDescriptor(row)
}

// List returns all descriptors ordered by name.
func (s *Store) List() ([]*models.CommandDescriptor, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, risk_tier, preconditions, signature, shell_template, created_at
		FROM commands ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*models.CommandDescriptor, 0)
	for rows.Next() {
		desc, err := scanDescriptor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, rows.Err()
}

// UpdateRequest carries the mutable registry fields of a descriptor.
type UpdateRequest struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	RiskTier      models.RiskTier        `json:"risk_tier"`
	Preconditions []models.Precondition  `json:"preconditions"`
	Signature     []models.ParameterSpec `json:"signature"`
	ShellTemplate string                 `json:"shell_template"`
}

// Update replaces a descriptor's registry fields.
func (s *Store) Update(id string, req *UpdateRequest) (*models.CommandDescriptor, error) {
	existing, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	if req.RiskTier != "" {
		existing.RiskTier = req.RiskTier
	}
	if req.Preconditions != nil {
		existing.Preconditions = req.Preconditions
	}
	if req.Signature != nil {
		existing.Signature = req.Signature
	}
	if req.ShellTemplate != "" {
		existing.ShellTemplate = req.ShellTemplate
	}

	preconditions, err := json.Marshal(existing.Preconditions)
	if err != nil {
		return nil, err
	}
	signature, err := json.Marshal(existing.Signature)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(`
		UPDATE commands SET name = ?, description = ?, risk_tier = ?, preconditions = ?, signature = ?, shell_template = ?
		WHERE id = ?
	`, existing.Name, existing.Description, string(existing.RiskTier), string(preconditions), string(signature), existing.ShellTemplate, id)
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Delete removes a descriptor.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM commands WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCommandNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDescriptor(row rowScanner) (*models.CommandDescriptor, error) {
	var desc models.CommandDescriptor
	var tier, preconditions, signature string
	var description, shellTemplate sql.NullString
	var createdAt time.Time

	err := row.Scan(&desc.ID, &desc.Name, &description, &tier, &preconditions, &signature, &shellTemplate, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrCommandNotFound
	}
	if err != nil {
		return nil, err
	}

	desc.RiskTier = models.RiskTier(tier)
	desc.Description = description.String
	desc.ShellTemplate = shellTemplate.String
	desc.CreatedAt = createdAt
	if preconditions != "" && preconditions != "null" {
		if err := json.Unmarshal([]byte(preconditions), &desc.Preconditions); err != nil {
			return nil, fmt.Errorf("decoding preconditions for %s: %w", desc.ID, err)
		}
	}
	if signature != "" && signature != "null" {
		if err := json.Unmarshal([]byte(signature), &desc.Signature); err != nil {
			return nil, fmt.Errorf("decoding signature for %s: %w", desc.ID, err)
		}
	}
	return &desc, nil
}

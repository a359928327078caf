// Package repository provides database access to stored API specifications.
package repository

import (
	"database/sql"
	"fmt"

	"github.com/apibridge/mcp-bridge/pkg/models"
)

const specColumns = "id, name, title, version, spec_content, mount_path, base_url, file_format, file_size, is_active, created_at, updated_at"

// SpecRepository handles database operations for stored specs.
type SpecRepository struct {
	db *sql.DB
}

// NewSpecRepository creates a new repository instance.
func NewSpecRepository(db *sql.DB) *SpecRepository {
	return &SpecRepository{db: db}
}

// Create inserts a new spec record and fills in its generated fields.
func (r *SpecRepository) Create(spec *models.SpecRecord) (*models.SpecRecord, error) {
	query := `
		INSERT INTO api_specs (name, title, version, spec_content, mount_path, base_url, file_format, file_size, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		spec.Name,
		spec.Title,
		spec.Version,
		spec.SpecContent,
		spec.MountPath,
		spec.BaseURL,
		spec.FileFormat,
		spec.FileSize,
		spec.IsActive,
	).Scan(&spec.ID, &spec.CreatedAt, &spec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create spec record: %v", err)
	}
	return spec, nil
}

func (r *SpecRepository) scanOne(row *sql.Row) (*models.SpecRecord, error) {
	spec := &models.SpecRecord{}
	err := row.Scan(
		&spec.ID,
		&spec.Name,
		&spec.Title,
		&spec.Version,
		&spec.SpecContent,
		&spec.MountPath,
		&spec.BaseURL,
		&spec.FileFormat,
		&spec.FileSize,
		&spec.IsActive,
		&spec.CreatedAt,
		&spec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// GetByID retrieves a spec record by its ID.
func (r *SpecRepository) GetByID(id int) (*models.SpecRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM api_specs WHERE id = $1", specColumns)
	spec, err := r.scanOne(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("spec with id %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spec: %v", err)
	}
	return spec, nil
}

// GetByName retrieves a spec record by its unique name.
func (r *SpecRepository) GetByName(name string) (*models.SpecRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM api_specs WHERE name = $1", specColumns)
	spec, err := r.scanOne(r.db.QueryRow(query, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("spec with name %s not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spec: %v", err)
	}
	return spec, nil
}

// GetByMountPath retrieves a spec record by the path it is served under.
func (r *SpecRepository) GetByMountPath(path string) (*models.SpecRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM api_specs WHERE mount_path = $1", specColumns)
	spec, err := r.scanOne(r.db.QueryRow(query, path))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("spec with mount path %s not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spec: %v", err)
	}
	return spec, nil
}

func (r *SpecRepository) queryMany(query string, args ...any) ([]*models.SpecRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query specs: %v", err)
	}
	defer rows.Close()

	var specs []*models.SpecRecord
	for rows.Next() {
		spec := &models.SpecRecord{}
		err := rows.Scan(
			&spec.ID,
			&spec.Name,
			&spec.Title,
			&spec.Version,
			&spec.SpecContent,
			&spec.MountPath,
			&spec.BaseURL,
			&spec.FileFormat,
			&spec.FileSize,
			&spec.IsActive,
			&spec.CreatedAt,
			&spec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan spec row: %v", err)
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// GetAll returns every stored spec, newest first.
func (r *SpecRepository) GetAll() ([]*models.SpecRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM api_specs ORDER BY created_at DESC", specColumns)
	return r.queryMany(query)
}

// GetAllActive returns every active spec, newest first.
func (r *SpecRepository) GetAllActive() ([]*models.SpecRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM api_specs WHERE is_active = true ORDER BY created_at DESC", specColumns)
	return r.queryMany(query)
}

// Update replaces the mutable fields of a spec record.
func (r *SpecRepository) Update(spec *models.SpecRecord) error {
	query := `
		UPDATE api_specs
		SET name = $1, title = $2, version = $3, spec_content = $4, mount_path = $5, base_url = $6, file_format = $7, file_size = $8, is_active = $9
		WHERE id = $10
	`
	result, err := r.db.Exec(
		query,
		spec.Name,
		spec.Title,
		spec.Version,
		spec.SpecContent,
		spec.MountPath,
		spec.BaseURL,
		spec.FileFormat,
		spec.FileSize,
		spec.IsActive,
		spec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update spec: %v", err)
	}
	return requireOneRow(result, spec.ID)
}

// SetActive toggles a spec's active flag.
func (r *SpecRepository) SetActive(id int, active bool) error {
	result, err := r.db.Exec("UPDATE api_specs SET is_active = $1 WHERE id = $2", active, id)
	if err != nil {
		return fmt.Errorf("failed to update spec: %v", err)
	}
	return requireOneRow(result, id)
}

// Delete removes a spec record.
func (r *SpecRepository) Delete(id int) error {
	result, err := r.db.Exec("DELETE FROM api_specs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete spec: %v", err)
	}
	return requireOneRow(result, id)
}

func requireOneRow(result sql.Result, id int) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %v", err)
	}
	if affected == 0 {
		return fmt.Errorf("spec with id %d not found", id)
	}
	return nil
}

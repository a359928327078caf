// Package models defines the persistence records shared by the repository
// and loader layers.
package models

import "time"

// SpecRecord is one stored OpenAPI document in the api_specs table. Only the
// raw spec content is persisted; tools are re-derived from it on every load,
// never stored.
type SpecRecord struct {
	ID          int        `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Title       *string    `json:"title,omitempty" db:"title"`
	Version     *string    `json:"version,omitempty" db:"version"`
	SpecContent string     `json:"spec_content" db:"spec_content"`
	MountPath   string     `json:"mount_path" db:"mount_path"`
	BaseURL     string     `json:"base_url" db:"base_url"`
	FileFormat  *string    `json:"file_format,omitempty" db:"file_format"`
	FileSize    *int       `json:"file_size,omitempty" db:"file_size"`
	IsActive    *bool      `json:"is_active,omitempty" db:"is_active"`
	CreatedAt   *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// TableName returns the table name for the SpecRecord model.
func (SpecRecord) TableName() string {
	return "api_specs"
}

// NewSpecRecord creates a record with default values.
func NewSpecRecord(name, specContent, mountPath, baseURL string) *SpecRecord {
	now := time.Now()
	active := true
	format := "yaml"
	size := len(specContent)

	return &SpecRecord{
		Name:        name,
		SpecContent: specContent,
		MountPath:   mountPath,
		BaseURL:     baseURL,
		FileFormat:  &format,
		FileSize:    &size,
		IsActive:    &active,
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpecRecordDefaults(t *testing.T) {
	record := NewSpecRecord("petstore", "openapi: 3.0.0", "/petstore", "http://api.internal:8000")

	assert.Equal(t, "petstore", record.Name)
	assert.Equal(t, "/petstore", record.MountPath)
	require.NotNil(t, record.IsActive)
	assert.True(t, *record.IsActive)
	require.NotNil(t, record.FileFormat)
	assert.Equal(t, "yaml", *record.FileFormat)
	require.NotNil(t, record.FileSize)
	assert.Equal(t, len("openapi: 3.0.0"), *record.FileSize)
	assert.Equal(t, "api_specs", record.TableName())
}

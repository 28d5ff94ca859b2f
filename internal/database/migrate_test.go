package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@db:5432/ocr?sslmode=disable", "pgx5://u:p@db:5432/ocr?sslmode=disable"},
		{"postgresql://u:p@db/ocr", "pgx5://u:p@db/ocr"},
		{"pgx5://u:p@db/ocr", "pgx5://u:p@db/ocr"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MigrationURL(tt.in))
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestRollbackMigrations_RejectsNonPositiveSteps(t *testing.T) {
	assert.Error(t, RollbackMigrations("postgres://localhost/none", 0))
}

package persistence

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_InputValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("EmptyMigrationsPath", func(t *testing.T) {
		err := RunMigrations(logger, "postgres://test", "")
		assert.EqualError(t, err, "migrations path cannot be empty")
	})

	t.Run("EmptyDatabaseURL", func(t *testing.T) {
		err := RunMigrations(logger, "", "migrations/postgres")
		assert.EqualError(t, err, "database URL cannot be empty")
	})

	t.Run("MissingSourceDirectory", func(t *testing.T) {
		err := RunMigrations(logger, "postgres://localhost:1/none?sslmode=disable", "does/not/exist")
		assert.ErrorContains(t, err, "failed to create migrate instance")
	})
}

func TestMigrations_Files(t *testing.T) {
	const dir = "../../../migrations/postgres"
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs, "every migration needs an up and a down file")

	schema, err := os.ReadFile(filepath.Join(dir, "000001_init_schema.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(schema), "BEFORE UPDATE OR DELETE OR TRUNCATE ON audit_logs")
	assert.Contains(t, string(schema), "REVOKE UPDATE, DELETE, TRUNCATE ON audit_logs FROM PUBLIC")
}

package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersionsAreSortedSQLFiles(t *testing.T) {
	versions, err := MigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	assert.Equal(t, "0001_auth_core.sql", versions[0])
	for i, version := range versions {
		assert.True(t, strings.HasSuffix(version, ".sql"))
		if i > 0 {
			assert.Less(t, versions[i-1], version)
		}
	}
}

func TestInitialMigrationDeclaresAuthTables(t *testing.T) {
	script, err := migrationFiles.ReadFile("migrations/0001_auth_core.sql")
	require.NoError(t, err)

	for _, fragment := range []string{
		"CREATE TABLE IF NOT EXISTS member",
		"refresh_token_hash VARCHAR(64)",
		"refresh_token_expires_at TIMESTAMPTZ",
		"CREATE TABLE IF NOT EXISTS login_attempt",
		"CREATE TABLE IF NOT EXISTS access_token_blacklist",
	} {
		assert.Contains(t, string(script), fragment)
	}
}

package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogmirror/backend/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add shop location", "add_shop_location"},
		{"Add-Shop-Location", "add_shop_location"},
		{"ADD_SHOP_LOCATION", "add_shop_location"},
		{"add__shop__location", "add_shop_location"},
		{"Add Index 123", "add_index_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_init.up.sql"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_init.down.sql"), nil, 0o644))

	mf, err := CreateMigration(dir, "add shop location", "Track the fulfillment location per shop")
	require.NoError(t, err)

	assert.Equal(t, uint(2), mf.Version)
	assert.Equal(t, filepath.Join(dir, "000002_add_shop_location.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000002_add_shop_location.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add shop location")
	assert.Contains(t, string(up), "Track the fulfillment location per shop")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), mf.Version)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_add_index.up.sql",
		"000002_add_index.down.sql",
		"000001_init.up.sql",
		"000001_init.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "999_dir.up.sql"), 0o755))

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_add_index"}, names)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	names, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLatestVersion(t *testing.T) {
	t.Run("picks highest version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"000001_init.up.sql":           {},
			"000003_later.up.sql":          {},
			"000002_between.up.sql":        {},
			"000003_later.down.sql":        {},
			"notes_without_version.up.sql": {},
		}
		v, err := LatestVersion(fsys)
		require.NoError(t, err)
		assert.Equal(t, uint(3), v)
	})

	t.Run("embedded schema", func(t *testing.T) {
		v, err := LatestVersion(migrations.FS)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, uint(1))
	})

	t.Run("empty source", func(t *testing.T) {
		v, err := LatestVersion(fstest.MapFS{})
		require.NoError(t, err)
		assert.Zero(t, v)
	})
}

func TestStatus_Pending(t *testing.T) {
	assert.True(t, Status{Version: 0, Latest: 1}.Pending())
	assert.False(t, Status{Version: 1, Latest: 1}.Pending())
}

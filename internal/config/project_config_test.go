package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProjectConfig_Missing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadProjectConfig(dir)
	require.ErrorIs(t, err, ErrProjectConfigNotFound)
	assert.Empty(t, cfg.IgnoreDirs)
}

func TestLoadProjectConfig_Parses(t *testing.T) {
	dir := t.TempDir()
	content := "ignore_dirs:\n  - vendor\n  - dist\nignore_exts:\n  - .lock\ndocs_root: documentation\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".livingdocs.yml"), []byte(content), 0o644))

	cfg, err := LoadProjectConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor", "dist"}, cfg.IgnoreDirs)
	assert.Equal(t, []string{".lock"}, cfg.IgnoreExts)
	assert.Equal(t, "documentation", cfg.DocsRoot)
}

func TestLoadProjectConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".livingdocs.yml"), []byte("not: [valid"), 0o644))

	_, err := LoadProjectConfig(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProjectConfigParsing) || err != nil)
}

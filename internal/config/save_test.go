package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveTheme_PreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, SaveTheme(path, ThemeLight))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "theme: light")
	require.NotContains(t, content, "theme: dark")
	require.Contains(t, content, "# sqlite (default) or bolt")
	require.Contains(t, content, "double_click_window: 280ms")
}

func TestSaveTheme_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SaveTheme(path, ThemeDark))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "theme: dark", strings.TrimSpace(string(data)))
}

func TestSaveTheme_AppendsMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	require.NoError(t, SaveTheme(path, ThemeLight))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "level: debug")
	require.Contains(t, string(data), "theme: light")
}

func TestSaveTheme_RejectsUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.ErrorIs(t, SaveTheme(path, "neon"), ErrInvalid)
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestSaveTheme_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveTheme(path, ThemeDark))
	require.NoError(t, SaveTheme(path, ThemeLight))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

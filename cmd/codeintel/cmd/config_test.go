package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunConfigInit_WritesProjectConfigInCWD(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	require.NoError(t, runConfigInit(false, false))

	data, err := os.ReadFile(filepath.Join(dir, ".codeintel.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "embedding:")
}

func TestRunConfigInit_RefusesToOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	require.NoError(t, runConfigInit(false, false))
	assert.Error(t, runConfigInit(false, false))
	assert.NoError(t, runConfigInit(false, true))
}

package control

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileInterlocks_DefaultsToClear(t *testing.T) {
	interlocks, err := NewFileInterlocks(t.TempDir())
	require.NoError(t, err)

	assert.False(t, interlocks.StopRequested())
	assert.False(t, interlocks.KillSwitchEngaged())
}

func TestFileInterlocks_StopFlag(t *testing.T) {
	dir := t.TempDir()
	interlocks, err := NewFileInterlocks(dir)
	require.NoError(t, err)

	flag := filepath.Join(dir, "stop.flag")
	require.NoError(t, os.WriteFile(flag, nil, 0o644))
	assert.True(t, interlocks.StopRequested())
	assert.False(t, interlocks.KillSwitchEngaged())

	require.NoError(t, os.Remove(flag))
	assert.False(t, interlocks.StopRequested())
}

func TestFileInterlocks_KillSwitchFlag(t *testing.T) {
	dir := t.TempDir()
	interlocks, err := NewFileInterlocks(dir)
	require.NoError(t, err)

	flag := filepath.Join(dir, "kill_switch.flag")
	require.NoError(t, os.WriteFile(flag, nil, 0o644))
	assert.True(t, interlocks.KillSwitchEngaged())
	assert.False(t, interlocks.StopRequested())

	require.NoError(t, os.Remove(flag))
	assert.False(t, interlocks.KillSwitchEngaged())
}

func TestNewFileInterlocks_CreatesControlDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "control")
	_, err := NewFileInterlocks(dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

package utils

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDManager(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "chatsrv.pid")

	t.Run("write and remove", func(t *testing.T) {
		manager := NewPIDManager(pidFile)
		require.NoError(t, manager.WritePID())

		content, err := os.ReadFile(pidFile)
		require.NoError(t, err)
		pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)

		require.NoError(t, manager.RemovePID())
		_, err = os.Stat(pidFile)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("creates missing directory", func(t *testing.T) {
		nested := filepath.Join(tmpDir, "run", "chatsrv.pid")
		manager := NewPIDManager(nested)
		require.NoError(t, manager.WritePID())

		_, err := os.Stat(nested)
		require.NoError(t, err)
	})
}

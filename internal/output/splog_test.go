package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplog(t *testing.T) {
	t.Run("console output is plain", func(t *testing.T) {
		t.Setenv("DEBUG", "")
		var buf bytes.Buffer
		splog, err := NewSplogWithOptions(SplogOptions{Writer: &buf})
		require.NoError(t, err)

		splog.Info("wrote %d files", 2)
		splog.Debug("hidden")
		splog.Warn("careful")
		require.Equal(t, "wrote 2 files\n⚠️  careful\n", buf.String())
	})

	t.Run("debug shows library attributes", func(t *testing.T) {
		var buf bytes.Buffer
		splog, err := NewSplogWithOptions(SplogOptions{Writer: &buf, Debug: true})
		require.NoError(t, err)

		splog.Logger().With("op", "write").Debug("pipeline stage", "stage", "done")
		require.Equal(t, "pipeline stage op=write stage=done\n", buf.String())
	})

	t.Run("log file receives everything", func(t *testing.T) {
		t.Setenv("DEBUG", "")
		var buf bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "logs", "ghrest.log")
		splog, err := NewSplogWithOptions(SplogOptions{Writer: &buf, LogFile: logFile})
		require.NoError(t, err)

		splog.Debug("request finished")
		splog.Info("visible")
		require.NoError(t, splog.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		require.Contains(t, string(data), "request finished")
		require.Contains(t, string(data), "visible")
		require.Equal(t, "visible\n", buf.String())
	})
}

func TestCreateLumberjackLogger(t *testing.T) {
	t.Setenv("GHREST_LOG_MAX_SIZE", "5")
	t.Setenv("GHREST_LOG_MAX_BACKUPS", "0")
	t.Setenv("GHREST_LOG_MAX_AGE", "bogus")

	l := createLumberjackLogger("/tmp/x.log")
	require.Equal(t, 5, l.MaxSize)
	require.Equal(t, 0, l.MaxBackups)
	require.Equal(t, 30, l.MaxAge)
}

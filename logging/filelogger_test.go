package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLoggerValidation(t *testing.T) {
	_, err := NewFileLogger("", "run")
	require.Error(t, err)

	_, err = NewFileLogger(t.TempDir(), "")
	require.Error(t, err)
}

func TestNewFileLoggerCreatesRunDirectories(t *testing.T) {
	base := t.TempDir()
	logger, err := NewFileLogger(base, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", logger.RunID())
	assert.Equal(t, filepath.Join(base, RunDirectoryPrefix+"run-1"), logger.Dir())

	info, err := os.Stat(logger.UnitsDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteUnitLog(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-1")
	require.NoError(t, err)

	path, err := logger.WriteUnitLog("alpha", []byte("out line\n"), []byte("err line\n"))
	require.NoError(t, err)
	require.NoError(t, logger.Complete())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "UNIT: alpha")
	assert.Contains(t, content, "STDOUT:")
	assert.Contains(t, content, "out line")
	assert.Contains(t, content, "STDERR:")
	assert.Contains(t, content, "err line")
}

func TestWriteUnitLogStripsANSI(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-1")
	require.NoError(t, err)

	path, err := logger.WriteUnitLog("colored", []byte("\x1b[31mred text\x1b[0m\n"), nil)
	require.NoError(t, err)
	require.NoError(t, logger.Complete())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "red text")
	assert.NotContains(t, string(data), "\x1b[31m")
}

func TestWriteUnitLogNoOutput(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-1")
	require.NoError(t, err)

	path, err := logger.WriteUnitLog("silent", nil, nil)
	require.NoError(t, err)
	require.NoError(t, logger.Complete())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "No output captured.")
}

func TestWriteUnitLogRejectsEmptyID(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-1")
	require.NoError(t, err)

	_, err = logger.WriteUnitLog("", []byte("x"), nil)
	require.Error(t, err)
}

func TestWriteSummary(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-1")
	require.NoError(t, err)

	require.NoError(t, logger.WriteSummary("all units passed\n"))
	require.NoError(t, logger.Complete())

	data, err := os.ReadFile(logger.SummaryFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "all units passed")
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"path/to/unit", "path_to_unit"},
		{"spaced name", "spaced_name"},
		{"q?mark*star", "q_mark_star"},
		{`back\slash:colon`, "back_slash_colon"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeFilename(tt.input))
	}
}

func TestAsyncFileWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	af, err := NewAsyncFile(path)
	require.NoError(t, err)

	require.NoError(t, af.Write([]byte("before close\n")))
	require.NoError(t, af.Close())
	require.Error(t, af.Write([]byte("after close\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "before close\n", string(data))
}

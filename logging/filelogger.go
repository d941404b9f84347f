package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
)

// RunDirectoryPrefix is the standardized prefix for per-run log directories.
const RunDirectoryPrefix = "testrun-"

// FileLogger persists raw unit output and run summaries under a per-run
// directory. Unit processes may emit ANSI escapes; stored logs are plain text.
type FileLogger struct {
	baseDir  string
	logDir   string
	unitsDir string
	runID    string

	mu           sync.Mutex
	asyncWriters map[string]*AsyncFile
}

// AsyncFile provides non-blocking file writing capabilities.
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes.
func NewAsyncFile(filepath string) (*AsyncFile, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filepath, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100), // Buffer channel to reduce blocking
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously.
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	// Copy to avoid races with the caller reusing the slice.
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	af.queue <- dataCopy
	return nil
}

// processQueue processes the write queue in the background.
func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates a FileLogger rooted at baseDir for the given run.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	unitsDir := filepath.Join(logDir, "units")
	for _, dir := range []string{baseDir, logDir, unitsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		unitsDir:     unitsDir,
		runID:        runID,
		asyncWriters: make(map[string]*AsyncFile),
	}, nil
}

// RunID returns the run this logger belongs to.
func (l *FileLogger) RunID() string {
	return l.runID
}

// Dir returns the per-run log directory.
func (l *FileLogger) Dir() string {
	return l.logDir
}

// UnitsDir returns the directory holding per-unit logs.
func (l *FileLogger) UnitsDir() string {
	return l.unitsDir
}

// WriteUnitLog stores the raw stdout and stderr of one unit and returns the
// path of the written file. Escape sequences are stripped so the files read
// cleanly in editors and CI artifact viewers.
func (l *FileLogger) WriteUnitLog(unitID string, stdout, stderr []byte) (string, error) {
	if unitID == "" {
		return "", fmt.Errorf("unitID cannot be empty")
	}

	path := filepath.Join(l.unitsDir, safeFilename(unitID)+".log")
	writer, err := l.getAsyncWriter(path)
	if err != nil {
		return "", err
	}

	var content strings.Builder
	fmt.Fprintf(&content, "UNIT: %s\n", unitID)
	fmt.Fprintf(&content, "TIME: %s\n\n", time.Now().Format(time.RFC3339))
	if len(stdout) > 0 {
		content.WriteString("STDOUT:\n")
		content.WriteString("~~~~~~~\n")
		content.WriteString(stripansi.Strip(string(stdout)))
		content.WriteString("\n\n")
	}
	if len(stderr) > 0 {
		content.WriteString("STDERR:\n")
		content.WriteString("~~~~~~~\n")
		content.WriteString(stripansi.Strip(string(stderr)))
		content.WriteString("\n")
	}
	if len(stdout) == 0 && len(stderr) == 0 {
		content.WriteString("No output captured.\n")
	}

	if err := writer.Write([]byte(content.String())); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSummary appends the run summary to the summary.log file.
func (l *FileLogger) WriteSummary(summary string) error {
	path := filepath.Join(l.logDir, "summary.log")
	writer, err := l.getAsyncWriter(path)
	if err != nil {
		return err
	}
	return writer.Write([]byte(stripansi.Strip(summary)))
}

// SummaryFile returns the path of the run summary file.
func (l *FileLogger) SummaryFile() string {
	return filepath.Join(l.logDir, "summary.log")
}

// Complete flushes and closes all open writers. The logger is reusable after
// Complete; subsequent writes reopen files.
func (l *FileLogger) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, writer := range l.asyncWriters {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.asyncWriters = make(map[string]*AsyncFile)
	return firstErr
}

// getAsyncWriter gets or creates an AsyncFile for the given path.
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}

	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

// safeFilename converts a string to a safe filename by replacing problematic
// characters.
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(s)
}

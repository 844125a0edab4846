package vidasync

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// CalculationLogger records what happened to each oracle batch and cache write of a calculation.
type CalculationLogger interface {
	LogBatch(entry BatchLog) error
}

// Batch log outcomes.
const (
	OutcomeClassified = "classified"
	OutcomeFallback   = "fallback"
	OutcomeSaved      = "saved"
	OutcomeSaveFailed = "save_failed"
)

// NewCalculationLogFilePath returns a file path based on a cleaned up model name or id to make easier to identify specific logs produced with various models.
func NewCalculationLogFilePath(model string) string {
	if model == "" {
		model = "default"
	}
	replacer := strings.NewReplacer(":", "_", "/", "_")
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		replacer.Replace(strings.ToLower(model)),
	)
}

// BatchLog is a single batch of work performed while resolving a calculation.
type BatchLog struct {
	Batch      int       `json:"batch"`
	Timestamp  time.Time `json:"timestamp"`
	Phrases    []string  `json:"phrases,omitempty"`
	Outcome    string    `json:"outcome"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// FileCalculationLogger accumulates batch logs and writes them out on Flush.
// Batches run concurrently, so LogBatch is guarded by a mutex.
type FileCalculationLogger struct {
	mu      sync.Mutex
	batches []BatchLog
	writer  io.Writer
}

func NewFileCalculationLogger(writer io.Writer) *FileCalculationLogger {
	return &FileCalculationLogger{
		batches: make([]BatchLog, 0),
		writer:  writer,
	}
}

// LogBatch buffers the entry (does not flush immediately)
func (l *FileCalculationLogger) LogBatch(entry BatchLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, entry)
	return nil
}

// Flush flushes all accumulated batch logs to the writer
func (l *FileCalculationLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"calculation_session": map[string]any{
			"timestamp": time.Now(),
			"batches":   l.batches,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calculation log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write calculation log: %w", err)
	}

	l.batches = l.batches[:0]
	return nil
}

// NoOpCalculationLogger discards all log entries
type NoOpCalculationLogger struct{}

func NewNoOpCalculationLogger() *NoOpCalculationLogger {
	return &NoOpCalculationLogger{}
}

func (nop *NoOpCalculationLogger) LogBatch(entry BatchLog) error {
	return nil
}

// StdoutCalculationLogger writes each batch log as a JSON line (for Lambda/CloudWatch)
type StdoutCalculationLogger struct {
	mu  sync.Mutex
	out io.Writer
}

func NewStdoutCalculationLogger() *StdoutCalculationLogger {
	return &StdoutCalculationLogger{out: os.Stdout}
}

func (l *StdoutCalculationLogger) LogBatch(entry BatchLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}

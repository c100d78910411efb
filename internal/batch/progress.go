package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/treerings/internal/common"
)

// Progress is told how far a batch has got, one image at a time.
type Progress interface {
	// OnStart is called once with the number of files found.
	OnStart(total int)

	// OnImage is called after image current (1-based) was processed.
	OnImage(current, total int, path string)

	// OnError is called when image current failed.
	OnError(current int, path string, err error)

	// OnComplete is called when the batch is finished.
	OnComplete(summary Summary)
}

// NoOpProgress ignores every update.
type NoOpProgress struct{}

func (NoOpProgress) OnStart(int)                {}
func (NoOpProgress) OnImage(int, int, string)   {}
func (NoOpProgress) OnError(int, string, error) {}
func (NoOpProgress) OnComplete(Summary)         {}

// ConsoleProgress draws a progress bar.
type ConsoleProgress struct {
	writer    io.Writer
	prefix    string
	width     int
	mutex     sync.Mutex
	startTime time.Time
}

// NewConsoleProgress creates a console progress bar. A nil writer means
// stderr.
func NewConsoleProgress(writer io.Writer, prefix string) *ConsoleProgress {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgress{writer: writer, prefix: prefix, width: 30}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgress) WithWidth(width int) *ConsoleProgress {
	c.width = width
	return c
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.startTime = time.Now()
	_, _ = fmt.Fprintf(c.writer, "%s0/%d images\n", c.prefix, total)
}

func (c *ConsoleProgress) OnImage(current, total int, path string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if total == 0 {
		return
	}
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	_, _ = fmt.Fprintf(c.writer, "\r%s[%s] %d/%d %s", c.prefix, bar, current, total, filepath.Base(path))
	if current == total {
		_, _ = fmt.Fprintln(c.writer)
	}
}

func (c *ConsoleProgress) OnError(current int, path string, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sError at image %d (%s): %v\n", c.prefix, current, filepath.Base(path), err)
}

func (c *ConsoleProgress) OnComplete(s Summary) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "%s%d processed, %d failed, %d row(s) in %v (%s)\n", c.prefix,
		s.Processed, s.Failed, s.Rows, s.Elapsed.Round(time.Millisecond), common.Rate(s.Processed, s.Elapsed))
}

// LogProgress logs updates with slog.
type LogProgress struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogProgress creates a log-based progress reporter. A nil logger means
// slog.Default().
func NewLogProgress(logger *slog.Logger, level slog.Level) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{logger: logger, level: level}
}

func (l *LogProgress) OnStart(total int) {
	l.logger.Log(context.Background(), l.level, "Batch started", "total", total)
}

func (l *LogProgress) OnImage(current, total int, path string) {
	l.logger.Log(context.Background(), l.level, "Image processed",
		"current", current, "total", total, "image", filepath.Base(path))
}

func (l *LogProgress) OnError(current int, path string, err error) {
	l.logger.Error("Image failed", "current", current, "image", filepath.Base(path), "error", err)
}

func (l *LogProgress) OnComplete(s Summary) {
	l.logger.Log(context.Background(), l.level, "Batch completed",
		"processed", s.Processed, "failed", s.Failed, "rows", s.Rows,
		"elapsed", s.Elapsed.Round(time.Millisecond), "table", s.Table)
}

// MultiProgress reports to several Progress implementations.
type MultiProgress struct {
	reporters []Progress
}

// NewMultiProgress combines reporters.
func NewMultiProgress(reporters ...Progress) *MultiProgress {
	return &MultiProgress{reporters: reporters}
}

func (m *MultiProgress) OnStart(total int) {
	for _, p := range m.reporters {
		p.OnStart(total)
	}
}

func (m *MultiProgress) OnImage(current, total int, path string) {
	for _, p := range m.reporters {
		p.OnImage(current, total, path)
	}
}

func (m *MultiProgress) OnError(current int, path string, err error) {
	for _, p := range m.reporters {
		p.OnError(current, path, err)
	}
}

func (m *MultiProgress) OnComplete(s Summary) {
	for _, p := range m.reporters {
		p.OnComplete(s)
	}
}

package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu       sync.Mutex
	logger   = slog.New(slog.DiscardHandler)
	file     *os.File
	counters = make(map[string]int)
)

// Init routes all logging to w. verbose enables the debug level, which is
// where per-step playback lines go.
func Init(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})

	mu.Lock()
	logger = slog.New(h)
	mu.Unlock()
}

// Enable writes verbose logs to path (truncated), creating its directory.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("=== Debug logging started ===", "category", "debug")
	return nil
}

// Disable closes the debug file and discards further output.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	logger = slog.New(slog.DiscardHandler)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Log writes a formatted debug-level message tagged with category.
func Log(category, format string, args ...any) {
	Logger().Debug(fmt.Sprintf(format, args...), "category", category)
}

func Info(category, msg string, attrs ...any) {
	Logger().Info(msg, append([]any{"category", category}, attrs...)...)
}

func Warn(category, msg string, attrs ...any) {
	Logger().Warn(msg, append([]any{"category", category}, attrs...)...)
}

func Error(category, msg string, attrs ...any) {
	Logger().Error(msg, append([]any{"category", category}, attrs...)...)
}

// LogEvery logs only every n calls for the same category and format
// (use for high-frequency events). The first call always logs.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	count := counters[key]
	counters[key]++
	mu.Unlock()

	if n <= 1 || count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count+1)...)
	}
}

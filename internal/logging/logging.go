package logging

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/z0nyx/Akidzuki-CLI/internal/config"
)

// Level is a log severity. Lines are tagged the way the rest of the code
// writes them: "DEBUG:", "WARNING:" or "ERROR:" after the [prefix], untagged
// lines are INFO.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel accepts DEBUG, INFO, WARN (or WARNING) and ERROR in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

var (
	logFile *os.File
	mu      sync.Mutex
	level   atomic.Int32
)

// levelWriter drops lines below the current level. log.Logger hands it one
// complete line per Write.
type levelWriter struct {
	w io.Writer
}

func (lw levelWriter) Write(p []byte) (int, error) {
	if lineLevel(p) < Level(level.Load()) {
		return len(p), nil
	}
	return lw.w.Write(p)
}

func lineLevel(line []byte) Level {
	switch {
	case bytes.Contains(line, []byte("ERROR:")):
		return LevelError
	case bytes.Contains(line, []byte("WARNING:")):
		return LevelWarn
	case bytes.Contains(line, []byte("DEBUG:")):
		return LevelDebug
	}
	return LevelInfo
}

// Init sends the standard logger to the configured log file. The terminal
// belongs to the menu and the remote shell, so nothing is written to stdout;
// if the file cannot be opened logging is discarded rather than corrupting
// the screen. Must be called after config.Load().
func Init() {
	lvl, err := ParseLevel(config.Cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v, using INFO\n", err)
	}
	SetLevel(lvl)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	path := logPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: cannot create log directory: %v\n", err)
		log.SetOutput(io.Discard)
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: cannot open log file %s: %v\n", path, err)
		log.SetOutput(io.Discard)
		return
	}

	mu.Lock()
	logFile = f
	mu.Unlock()
	log.SetOutput(levelWriter{w: f})
	log.Printf("Logging to file: %s (level %s)", path, lvl)
}

// Close flushes and closes the log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(io.Discard)
	err := logFile.Close()
	logFile = nil
	return err
}

// CurrentLevel returns the active threshold.
func CurrentLevel() Level {
	return Level(level.Load())
}

// SetLevel overrides the threshold set by Init.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// DebugEnabled reports whether DEBUG lines are written.
func DebugEnabled() bool {
	return CurrentLevel() == LevelDebug
}

// Debugf logs only at DEBUG level. A leading "[prefix] " stays in front of
// the DEBUG tag.
func Debugf(format string, args ...any) {
	if !DebugEnabled() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if i := strings.Index(msg, "] "); strings.HasPrefix(msg, "[") && i > 0 {
		msg = msg[:i+2] + "DEBUG: " + msg[i+2:]
	} else {
		msg = "DEBUG: " + msg
	}
	log.Output(2, msg)
}

func logPath() string {
	if config.Cfg.LogPath != "" {
		return config.Cfg.LogPath
	}
	return filepath.Join(config.Cfg.DataPath, "akidzuki.log")
}

// ReadTail returns the last n lines from the log file.
func ReadTail(n int) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	f, err := os.Open(logPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > 2*n && n > 0 {
			lines = append(lines[:0], lines[len(lines)-n:]...)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan log file: %w", err)
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}

// Clear truncates the log file.
func Clear() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		if err := logFile.Truncate(0); err != nil {
			return fmt.Errorf("truncate log file: %w", err)
		}
		if _, err := logFile.Seek(0, 0); err != nil {
			return fmt.Errorf("seek log file: %w", err)
		}
		return nil
	}

	if err := os.Truncate(logPath(), 0); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("truncate log file: %w", err)
	}
	return nil
}

package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
	"unicode/utf8"
)

// RecordingEntry is one timestamped event, asciinema v2 style.
type RecordingEntry struct {
	Elapsed float64 // seconds since the recording started
	Type    string  // "o" output, "i" input
	Data    string
}

// Recording captures timestamped terminal I/O of one session. Input is
// captured only when enabled. Safe for concurrent use.
type Recording struct {
	mu          sync.Mutex
	entries     []RecordingEntry
	startTime   time.Time
	maxEntries  int
	recordInput bool
	nowFn       func() time.Time
	// partial holds an incomplete trailing UTF-8 sequence per stream type.
	partial map[string][]byte
}

// NewRecording creates a recording. maxEntries <= 0 means unlimited.
func NewRecording(maxEntries int, recordInput bool) *Recording {
	return &Recording{
		startTime:   time.Now(),
		maxEntries:  maxEntries,
		recordInput: recordInput,
		nowFn:       time.Now,
	}
}

// add records data as a string. Event data is JSON text, so bytes that are
// not valid UTF-8 become U+FFFD in the cast; a rune split across two reads
// is held back and recorded whole with the next chunk.
func (r *Recording) add(typ string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxEntries > 0 && len(r.entries) >= r.maxEntries {
		return
	}
	if r.partial == nil {
		r.partial = make(map[string][]byte)
	}
	buf := append(r.partial[typ], data...)
	complete, rest := splitPartialRune(buf)
	r.partial[typ] = append([]byte(nil), rest...)
	if len(complete) == 0 {
		return
	}
	r.entries = append(r.entries, RecordingEntry{
		Elapsed: r.nowFn().Sub(r.startTime).Seconds(),
		Type:    typ,
		Data:    string(complete),
	})
}

// splitPartialRune cuts an incomplete UTF-8 sequence off the end of b.
func splitPartialRune(b []byte) (complete, rest []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return b, nil
		}
		return b[:i], b[i:]
	}
	return b, nil
}

func (r *Recording) RecordOutput(data []byte) { r.add("o", data) }

func (r *Recording) RecordInput(data []byte) {
	if r.recordInput {
		r.add("i", data)
	}
}

func (r *Recording) Entries() []RecordingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]RecordingEntry, len(r.entries))
	copy(result, r.entries)
	return result
}

type castHeader struct {
	Version   int    `json:"version"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp"`
	Title     string `json:"title,omitempty"`
}

// WriteCast writes the recording as an asciinema v2 cast: a header line
// followed by one [elapsed, type, data] array per line.
func (r *Recording) WriteCast(w io.Writer, title string, cols, rows int) error {
	r.mu.Lock()
	entries := make([]RecordingEntry, len(r.entries))
	copy(entries, r.entries)
	start := r.startTime
	r.mu.Unlock()

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	if err := enc.Encode(castHeader{Version: 2, Width: cols, Height: rows, Timestamp: start.Unix(), Title: title}); err != nil {
		return fmt.Errorf("encode cast header: %w", err)
	}
	for _, e := range entries {
		if err := enc.Encode([]any{e.Elapsed, e.Type, e.Data}); err != nil {
			return fmt.Errorf("encode cast event: %w", err)
		}
	}
	return bw.Flush()
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Save writes the cast to dir/<label>-<timestamp>.cast and returns the path.
func (r *Recording) Save(dir, label string, cols, rows int) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create recording dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.cast", unsafeFileChars.ReplaceAllString(label, "_"), r.startTime.Format("20060102-150405"))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("create recording: %w", err)
	}
	if err := r.WriteCast(f, label, cols, rows); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close recording: %w", err)
	}
	return path, nil
}

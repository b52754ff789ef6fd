// Package runlog keeps the append-only audit trail: one JSON line per check
// run and per dispatched notification. Mutable state lives in storage;
// anything that happened, and when, lives here.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/yairfalse/shelfwatch/types"
)

// EntryType defines the type of audit entry
type EntryType string

const (
	EntryRun          EntryType = "run"
	EntryNotification EntryType = "notification"
)

// Entry is a single line in the run log.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
	Type      EntryType       `json:"type"`
	TargetID  string          `json:"target_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error,omitempty"`
}

// Log appends audit entries to a timestamped JSON-lines file.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
}

// Open creates or opens a run log in the specified directory.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runlog directory: %w", err)
	}

	// Timestamp in filename for rotation
	filename := fmt.Sprintf("shelfwatch-%s.runlog", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open runlog file: %w", err)
	}

	return &Log{
		file:   file,
		writer: bufio.NewWriter(file),
		dir:    dir,
	}, nil
}

// Close flushes and closes the log.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

// AppendRun records the outcome of one check.
func (l *Log) AppendRun(rec types.RunRecord) error {
	return l.append(EntryRun, rec.TargetID, rec, rec.Error)
}

// AppendNotification records a dispatched notification with its per-channel
// delivery outcomes.
func (l *Log) AppendNotification(ev types.NotificationEvent) error {
	return l.append(EntryNotification, ev.TargetID, ev, "")
}

func (l *Log) append(entryType EntryType, targetID string, data interface{}, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequence++

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	entry := Entry{
		Timestamp: time.Now(),
		Sequence:  l.sequence,
		Type:      entryType,
		TargetID:  targetID,
		Data:      jsonData,
		Error:     errMsg,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if _, err := l.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if _, err := l.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	// Flush immediately for durability
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return l.file.Sync()
}

// Reader iterates over one run log file.
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader opens a reader for the specified file.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open runlog file: %w", err)
	}

	return &Reader{
		scanner: bufio.NewScanner(file),
		file:    file,
	}, nil
}

// Next reads the next entry, returning io.EOF at the end.
func (r *Reader) Next() (*Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Replay replays entries newer than since, across all log files in dir.
func Replay(dir string, since time.Time, handler func(*Entry) error) error {
	files, err := filepath.Glob(filepath.Join(dir, "shelfwatch-*.runlog"))
	if err != nil {
		return fmt.Errorf("failed to list runlog files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		if err := replayFile(file, since, handler); err != nil {
			return err
		}
	}
	return nil
}

func replayFile(path string, since time.Time, handler func(*Entry) error) error {
	reader, err := NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if entry.Timestamp.After(since) {
			if err := handler(entry); err != nil {
				return err
			}
		}
	}
}

// History collects the most recent limit entries for a target (all targets
// when targetID is empty), newest first.
func History(dir, targetID string, since time.Time, limit int) ([]*Entry, error) {
	var entries []*Entry
	err := Replay(dir, since, func(e *Entry) error {
		if targetID == "" || e.TargetID == targetID {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Package ledger persists governed decisions to an append-only,
// hash-chained JSONL log rotated by UTC calendar day. Every append
// extends the chain: an entry's hash incorporates its predecessor's, so
// retroactive edits are computationally evident to Verify.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	filePrefix = "audit-"
	fileSuffix = ".jsonl"
	dayFormat  = "2006-01-02"
)

// Ledger owns the chain anchor and the open day file. The mutex spans
// the whole read-anchor, compute-hash, write-line, advance-anchor
// sequence: if two appends could interleave it, the chain would fork
// and tamper evidence would be lost.
type Ledger struct {
	dir string

	mu   sync.Mutex
	file *os.File
	day  string
	prev string

	now func() time.Time
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Open ensures dir exists and resumes the hash chain from the last
// entry of the newest day file, so one continuous chain spans restarts
// and day rotations. A fresh directory starts from the empty anchor.
func Open(dir string, opts ...Option) (*Ledger, error) {
	if dir == "" {
		return nil, fmt.Errorf("ledger directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	l := &Ledger{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}

	anchor, err := lastHash(dir)
	if err != nil {
		return nil, err
	}
	l.prev = anchor
	return l, nil
}

// Append fills in the entry's ID, timestamp, hash, and previous hash,
// writes it as one JSONL line, and advances the chain anchor. Safe for
// concurrent use; appends are fully serialized.
//
// A write failure triggers one create-directory-and-retry cycle. A
// second failure is returned to the caller: audit loss is the one error
// this system refuses to swallow. The context is accepted for interface
// symmetry only; an append that has started always runs to completion
// so the chain is never left half-advanced.
func (l *Ledger) Append(_ context.Context, e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.TimestampMs == 0 {
		e.TimestampMs = l.now().UnixMilli()
	}
	if e.ID == "" {
		e.ID = newEntryID(e.TimestampMs)
	}

	day := time.UnixMilli(e.TimestampMs).UTC().Format(dayFormat)
	if err := l.ensureFile(day); err != nil {
		return Entry{}, err
	}

	e.PreviousHash = l.prev
	hash, err := e.chainHash()
	if err != nil {
		return Entry{}, err
	}
	e.Hash = hash

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		// The directory may have been removed out from under us; recreate
		// it and retry the write once. A second failure is fatal.
		if retryErr := l.reopen(day); retryErr != nil {
			return Entry{}, fmt.Errorf("audit write failed: %w", retryErr)
		}
		if _, err := l.file.Write(line); err != nil {
			return Entry{}, fmt.Errorf("audit write failed after retry: %w", err)
		}
	}

	l.prev = e.Hash
	return e, nil
}

// Dir returns the directory holding the day files.
func (l *Ledger) Dir() string {
	return l.dir
}

// Close closes the open day file. The chain anchor survives on disk.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ensureFile opens the day file for the given UTC day, rotating away
// from the previous day's file when the date changes. Callers hold mu.
func (l *Ledger) ensureFile(day string) error {
	if l.file != nil && l.day == day {
		return nil
	}
	return l.reopen(day)
}

// reopen recreates the directory and reopens the day file. Callers hold mu.
func (l *Ledger) reopen(day string) error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	f, err := os.OpenFile(l.dayPath(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	l.file = f
	l.day = day
	return nil
}

func (l *Ledger) dayPath(day string) string {
	return filepath.Join(l.dir, filePrefix+day+fileSuffix)
}

// newEntryID combines a millisecond timestamp with a short random
// suffix. Collisions are negligible at ledger write rates; callers
// needing compliance-grade global uniqueness would widen the suffix to
// a full UUID without changing the format.
func newEntryID(timestampMs int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", timestampMs, suffix)
}

// dayFiles lists the ledger's day files in chain order (the day-stamped
// names sort lexicographically by date).
func dayFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, fmt.Errorf("list ledger files: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// lastHash returns the hash of the final entry in the newest day file,
// or the empty anchor when the directory holds no entries yet.
func lastHash(dir string) (string, error) {
	files, err := dayFiles(dir)
	if err != nil {
		return "", err
	}
	for i := len(files) - 1; i >= 0; i-- {
		data, err := os.ReadFile(files[i])
		if err != nil {
			return "", fmt.Errorf("read ledger file %s: %w", files[i], err)
		}
		lines := nonEmptyLines(data)
		if len(lines) == 0 {
			continue
		}
		var last Entry
		if err := json.Unmarshal(lines[len(lines)-1], &last); err != nil {
			return "", fmt.Errorf("parse last entry of %s: %w", files[i], err)
		}
		return last.Hash, nil
	}
	return "", nil
}

func nonEmptyLines(data []byte) [][]byte {
	var lines [][]byte
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, []byte(line))
	}
	return lines
}

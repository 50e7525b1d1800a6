package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(userID, actionType string) Entry {
	return Entry{
		UserID: userID,
		Action: ActionRecord{
			Type:   actionType,
			Params: map[string]any{"path": "/tmp/report.txt"},
		},
		Result:     ResultRecord{Success: true},
		Permission: PermissionRecord{Allowed: true},
		Metadata:   Metadata{LatencyMs: 12},
	}
}

func TestAppend_ChainsSequentialEntries(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	a, err := l.Append(ctx, testEntry("u1", "file.read"))
	require.NoError(t, err)
	b, err := l.Append(ctx, testEntry("u1", "file.write"))
	require.NoError(t, err)
	c, err := l.Append(ctx, testEntry("u2", "shell.exec"))
	require.NoError(t, err)

	assert.Empty(t, a.PreviousHash)
	assert.Equal(t, a.Hash, b.PreviousHash)
	assert.Equal(t, b.Hash, c.PreviousHash)

	assert.NotEmpty(t, a.ID)
	assert.NotZero(t, a.TimestampMs)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAppend_HashMatchesRecomputation(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	written, err := l.Append(context.Background(), testEntry("u1", "file.read"))
	require.NoError(t, err)

	recomputed, err := written.chainHash()
	require.NoError(t, err)
	assert.Equal(t, written.Hash, recomputed)
}

func TestAppend_ConcurrentCallsFormOneChain(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Append(context.Background(), testEntry(fmt.Sprintf("u%d", i), "file.read"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	result, err := Verify(dir)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Reason)
	assert.Equal(t, writers, result.Entries)

	// Exactly one line per append, every previousHash distinct.
	entries := readEntries(t, dir)
	require.Len(t, entries, writers)
	seen := make(map[string]bool)
	for _, e := range entries {
		require.False(t, seen[e.PreviousHash], "duplicate previousHash: chain forked")
		seen[e.PreviousHash] = true
	}
}

func TestOpen_ResumesChainAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := Open(dir)
	require.NoError(t, err)
	a, err := first.Append(ctx, testEntry("u1", "file.read"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(dir)
	require.NoError(t, err)
	defer second.Close()
	b, err := second.Append(ctx, testEntry("u1", "file.write"))
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.PreviousHash)

	result, err := Verify(dir)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Reason)
	assert.Equal(t, 2, result.Entries)
}

func TestAppend_RotatesByUTCDay(t *testing.T) {
	dir := t.TempDir()
	current := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	l, err := Open(dir, WithClock(func() time.Time { return current }))
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	a, err := l.Append(ctx, testEntry("u1", "file.read"))
	require.NoError(t, err)

	current = current.Add(2 * time.Minute) // crosses midnight
	b, err := l.Append(ctx, testEntry("u1", "file.read"))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "audit-2026-08-30.jsonl"))
	assert.FileExists(t, filepath.Join(dir, "audit-2026-08-31.jsonl"))

	// The chain spans the file boundary.
	assert.Equal(t, a.Hash, b.PreviousHash)
	result, err := Verify(dir)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Reason)
	assert.Equal(t, []string{"audit-2026-08-30.jsonl", "audit-2026-08-31.jsonl"}, result.Files)
}

func TestAppend_RecreatesMissingDirectoryOnce(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "audit")
	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	a, err := l.Append(ctx, testEntry("u1", "file.read"))
	require.NoError(t, err)

	// Yank the directory away between appends. With no open handle the
	// next append has to recreate the directory before writing.
	require.NoError(t, l.Close())
	require.NoError(t, os.RemoveAll(dir))

	b, err := l.Append(ctx, testEntry("u1", "file.write"))
	require.NoError(t, err)
	assert.DirExists(t, dir)
	// The in-memory anchor still links the new file to the lost entry.
	assert.Equal(t, a.Hash, b.PreviousHash)
}

func TestAppend_RetriesOnceAfterWriteFailure(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	first, err := l.Append(ctx, testEntry("u1", "file.read"))
	require.NoError(t, err)

	// Swap the handle for a read-only one so the next write fails; the
	// single retry must reopen the file and land the entry.
	l.mu.Lock()
	require.NoError(t, l.file.Close())
	readOnly, err := os.Open(l.dayPath(l.day))
	require.NoError(t, err)
	l.file = readOnly
	l.mu.Unlock()

	second, err := l.Append(ctx, testEntry("u1", "file.write"))
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PreviousHash)

	result, err := Verify(dir)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Reason)
	assert.Equal(t, 2, result.Entries)
}

func TestVerify_DetectsTamperedEntry(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := l.Append(ctx, testEntry("u1", "file.read"))
		require.NoError(t, err)
	}
	require.NoError(t, l.Close())

	// Flip a field in the middle entry without touching its stored hash.
	files, err := dayFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	lines[1] = strings.Replace(lines[1], `"userId":"u1"`, `"userId":"mallory"`, 1)
	require.NoError(t, os.WriteFile(files[0], []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	result, err := Verify(dir)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, 2, result.FailedLine)
	assert.Equal(t, "stored hash does not match entry contents", result.Reason)
	// Only the line before the tamper point verified cleanly.
	assert.Equal(t, 1, result.Entries)
}

func TestVerify_DetectsBrokenLink(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)

	ctx := context.Background()
	entries := make([]Entry, 0, 2)
	for i := 0; i < 2; i++ {
		e, err := l.Append(ctx, testEntry("u1", "file.read"))
		require.NoError(t, err)
		entries = append(entries, e)
	}
	require.NoError(t, l.Close())

	// Delete the first line: the survivor's previousHash no longer meets
	// the empty anchor.
	files, err := dayFiles(dir)
	require.NoError(t, err)
	line, err := json.Marshal(entries[1])
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(files[0], append(line, '\n'), 0o644))

	result, err := Verify(dir)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, 1, result.FailedLine)
	assert.Contains(t, result.Reason, "broken link")
}

func TestVerify_EmptyDirectory(t *testing.T) {
	result, err := Verify(t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Zero(t, result.Entries)
}

func readEntries(t *testing.T, dir string) []Entry {
	t.Helper()
	files, err := dayFiles(dir)
	require.NoError(t, err)
	var entries []Entry
	for _, path := range files {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		for _, line := range nonEmptyLines(data) {
			var e Entry
			require.NoError(t, json.Unmarshal(line, &e))
			entries = append(entries, e)
		}
	}
	return entries
}

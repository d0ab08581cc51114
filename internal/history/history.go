// Package history implements the HistoryBuffer entity (spec 3, 4.4.1, 4.7):
// an in-memory, append-only record of entered command lines plus the
// file-backed read/append/overwrite operations the history builtin exposes.
package history

import (
	"bufio"
	"fmt"
	"os"
)

// Buffer is an ordered, append-only sequence of previously entered
// non-empty lines, plus the append-index marker that tracks how much of
// the buffer has already been persisted via -a.
//
// Buffer is not safe for concurrent use; the shell that owns it runs a
// single-threaded REPL loop (spec section 5).
type Buffer struct {
	entries     []string
	appendIndex int
}

// New returns an empty history buffer.
func New() *Buffer {
	return &Buffer{}
}

// Add appends a single entry. Callers are responsible for only calling Add
// with non-empty lines; the REPL driver filters blank input before this
// point (spec 4.8).
func (b *Buffer) Add(line string) {
	b.entries = append(b.entries, line)
}

// Len reports the number of entries currently held.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Entries returns the texts of the last n entries, in original order (use
// Format for the 1-indexed listing). n < 0 or n greater than the buffer length
// returns every entry (spec 4.4.1: "all, if N omitted or invalid-nonnegative
// interpretation yields 'all'").
func (b *Buffer) Entries(n int) []string {
	if n < 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	return b.entries[len(b.entries)-n:]
}

// Format renders the last n entries (see Entries) the way the history
// builtin prints them: four leading spaces, the 1-indexed position, two
// spaces, then the text.
func (b *Buffer) Format(n int) []string {
	start := len(b.entries) - len(b.Entries(n)) + 1
	lines := make([]string, 0, len(b.entries))
	for i, e := range b.Entries(n) {
		lines = append(lines, fmt.Sprintf("    %d  %s", start+i, e))
	}
	return lines
}

// Load reads newline-separated entries from path and appends them to the
// buffer, skipping blank lines. A missing file is reported to the caller as
// an error so it can be surfaced as the documented soft error rather than
// aborting the shell.
func (b *Buffer) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		b.Add(line)
	}
	return scanner.Err()
}

// AppendNew writes entries with index strictly greater than the
// append-index marker to path (creating or appending to it), then advances
// the marker to the current buffer length. A second call with no
// intervening Add is therefore a no-op (spec 8's idempotence property).
func (b *Buffer) AppendNew(path string) error {
	if b.appendIndex >= len(b.entries) {
		b.appendIndex = len(b.entries)
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range b.entries[b.appendIndex:] {
		if _, err := fmt.Fprintln(w, e); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	b.appendIndex = len(b.entries)
	return nil
}

// WriteAll overwrites path with every in-memory entry, one per line.
func (b *Buffer) WriteAll(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range b.entries {
		if _, err := fmt.Fprintln(w, e); err != nil {
			return err
		}
	}
	return w.Flush()
}

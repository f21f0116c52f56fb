// Package ledger persists the set of addresses that have completed a full
// reconciliation. The backing store is an append-only newline-delimited text
// file: one raw address per line, order = commit order, exact-match lookup.
package ledger

import (
	"bufio"
	"os"
	"sync"

	"github.com/rotisserie/eris"
)

// Ledger is the durable record of fully reconciled addresses. Entries are
// never removed — reconciliation is monotonic.
type Ledger struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	committed map[string]struct{}
}

// Open loads the ledger at path, creating the file if it does not exist.
// Duplicate lines in the backing file (e.g. from a legacy writer) are
// tolerated: membership dedupes on load.
func Open(path string) (*Ledger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: open %s", path)
	}

	committed := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			committed[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, eris.Wrapf(err, "ledger: scan %s", path)
	}

	return &Ledger{path: path, file: f, committed: committed}, nil
}

// Contains reports whether address was previously committed. The match is
// exact: case- and whitespace-sensitive.
func (l *Ledger) Contains(address string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.committed[address]
	return ok
}

// Commit durably appends address. Committing an already-present address is a
// no-op, so the file never accumulates duplicates. The write is flushed and
// synced before returning; a crash mid-run never loses prior commits.
func (l *Ledger) Commit(address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.committed[address]; ok {
		return nil
	}

	if _, err := l.file.WriteString(address + "\n"); err != nil {
		return eris.Wrapf(err, "ledger: append %q", address)
	}
	if err := l.file.Sync(); err != nil {
		return eris.Wrapf(err, "ledger: sync %s", l.path)
	}

	l.committed[address] = struct{}{}
	return nil
}

// Len returns the number of committed addresses.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.committed)
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close releases the backing file handle.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

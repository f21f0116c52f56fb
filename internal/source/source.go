// Package source supplies the addresses a sync pass iterates over.
package source

import (
	"bufio"
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/accountsync-cli/internal/crm"
)

// Source yields the candidate addresses for one pass, in input order. The
// ledger filters out the already-reconciled ones downstream.
type Source interface {
	Addresses(ctx context.Context) ([]string, error)
}

// FileSource reads a newline-delimited queue file. A missing file is an
// empty queue, not an error — the importer may not have run yet.
type FileSource struct {
	Path string
}

func (s *FileSource) Addresses(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "source: open queue %s", s.Path)
	}
	defer f.Close()

	var addresses []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			addresses = append(addresses, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: scan queue %s", s.Path)
	}
	return addresses, nil
}

// CRMSource pulls addresses from the CRM module itself: records whose
// Address field is populated get reconciled against the search source.
type CRMSource struct {
	API    crm.API
	Module string
}

func (s *CRMSource) Addresses(ctx context.Context) ([]string, error) {
	entries, err := s.API.ListAddresses(ctx, s.Module)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Address != "" {
			addresses = append(addresses, e.Address)
		}
	}
	return addresses, nil
}

// AppendToQueue appends addresses to the queue file, skipping any already
// present so repeated imports stay idempotent. Returns the number added.
func AppendToQueue(path string, addresses []string) (int, error) {
	existing := make(map[string]struct{})
	if current, err := (&FileSource{Path: path}).Addresses(context.Background()); err == nil {
		for _, a := range current {
			existing[a] = struct{}{}
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, eris.Wrapf(err, "source: open queue %s", path)
	}
	defer f.Close()

	added := 0
	for _, a := range addresses {
		if a == "" {
			continue
		}
		if _, ok := existing[a]; ok {
			continue
		}
		if _, err := f.WriteString(a + "\n"); err != nil {
			return added, eris.Wrapf(err, "source: append to %s", path)
		}
		existing[a] = struct{}{}
		added++
	}
	return added, f.Sync()
}

package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/accountsync-cli/internal/crm"
)

type fakeAPI struct {
	entries []crm.AddressEntry
	err     error
}

func (f *fakeAPI) ListAddresses(ctx context.Context, module string) ([]crm.AddressEntry, error) {
	return f.entries, f.err
}

func (f *fakeAPI) SearchByAddress(ctx context.Context, module, address string) (string, bool, error) {
	return "", false, nil
}

func (f *fakeAPI) CreateRecord(ctx context.Context, module string, fields map[string]any) (string, error) {
	return "", nil
}

func (f *fakeAPI) UpdateRecord(ctx context.Context, module, id string, fields map[string]any) error {
	return nil
}

func (f *fakeAPI) GetLayoutID(ctx context.Context, module, id string) (string, error) {
	return "", nil
}

func (f *fakeAPI) UploadPhoto(ctx context.Context, module, id, filePath string) error {
	return nil
}

func TestFileSource(t *testing.T) {
	t.Run("reads lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "queue.txt")
		require.NoError(t, os.WriteFile(path, []byte("1 Main St\n\n5 Oak Ave\n"), 0o644))

		addrs, err := (&FileSource{Path: path}).Addresses(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"1 Main St", "5 Oak Ave"}, addrs)
	})

	t.Run("missing file is empty queue", func(t *testing.T) {
		addrs, err := (&FileSource{Path: filepath.Join(t.TempDir(), "absent.txt")}).Addresses(context.Background())
		require.NoError(t, err)
		assert.Empty(t, addrs)
	})
}

func TestCRMSource(t *testing.T) {
	t.Run("skips blank addresses", func(t *testing.T) {
		api := &fakeAPI{entries: []crm.AddressEntry{
			{Address: "1 Main St", RecordID: "1"},
			{Address: "", RecordID: "2"},
			{Address: "5 Oak Ave", RecordID: "3"},
		}}

		addrs, err := (&CRMSource{API: api, Module: "Accounts"}).Addresses(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"1 Main St", "5 Oak Ave"}, addrs)
	})

	t.Run("propagates errors", func(t *testing.T) {
		api := &fakeAPI{err: eris.New("boom")}
		_, err := (&CRMSource{API: api, Module: "Accounts"}).Addresses(context.Background())
		require.Error(t, err)
	})
}

func TestAppendToQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.txt")

	added, err := AppendToQueue(path, []string{"1 Main St", "5 Oak Ave", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Re-importing the same list adds nothing.
	added, err = AppendToQueue(path, []string{"5 Oak Ave", "9 Birch Ln"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	addrs, err := (&FileSource{Path: path}).Addresses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1 Main St", "5 Oak Ave", "9 Birch Ln"}, addrs)
}

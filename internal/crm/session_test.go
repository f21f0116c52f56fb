package crm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSessionStore_RoundTrip(t *testing.T) {
	store := NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))

	sess := &Session{
		APIDomain:    "https://www.zohoapis.com",
		AccessToken:  "tok",
		RefreshToken: "ref",
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURL:     "https://accounts.zoho.com/oauth/v2/token",
	}
	require.NoError(t, store.Save(sess))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sess, loaded)
}

func TestFileSessionStore_DefaultsTokenURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"api_domain": "https://www.zohoapis.com",
		"access_token": "tok",
		"refresh_token": "ref",
		"client_id": "cid",
		"client_secret": "secret"
	}`), 0o644))

	loaded, err := NewFileSessionStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenURL, loaded.TokenURL)
}

func TestFileSessionStore_LoadMissingFile(t *testing.T) {
	_, err := NewFileSessionStore(filepath.Join(t.TempDir(), "absent.json")).Load()
	require.Error(t, err)
}

func TestFileSessionStore_SaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	store := NewFileSessionStore(path)

	require.NoError(t, store.Save(&Session{APIDomain: "a", AccessToken: "one"}))
	require.NoError(t, store.Save(&Session{APIDomain: "a", AccessToken: "two"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "two", loaded.AccessToken)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())
}

func TestNew_RequiresAPIDomain(t *testing.T) {
	store := NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(&Session{AccessToken: "tok"}))

	_, err := New(store, Options{})
	require.Error(t, err)
}

package crm

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Session holds the CRM auth credentials. It is loaded at process start and
// rewritten in full every time a refresh replaces the access token, so a
// restart resumes with the latest token.
type Session struct {
	APIDomain    string `json:"api_domain"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
}

// DefaultTokenURL is used when the session file does not specify one.
const DefaultTokenURL = "https://accounts.zoho.com/oauth/v2/token"

// SessionStore persists the auth session across token refreshes.
type SessionStore interface {
	Load() (*Session, error)
	Save(*Session) error
}

// FileSessionStore keeps the session in a JSON file. Saves are atomic
// (write to a temp file, then rename) so a crash never leaves a torn token.
type FileSessionStore struct {
	path string
}

// NewFileSessionStore creates a store backed by the given path.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "session: read %s", s.path)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, eris.Wrapf(err, "session: parse %s", s.path)
	}
	if sess.TokenURL == "" {
		sess.TokenURL = DefaultTokenURL
	}
	return &sess, nil
}

func (s *FileSessionStore) Save(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return eris.Wrap(err, "session: marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return eris.Wrap(err, "session: create temp")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "session: write temp")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "session: sync temp")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "session: close temp")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "session: rename to %s", s.path)
	}
	return nil
}

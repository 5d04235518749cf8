package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chatloop/core"
)

const fileExt = ".yaml"

// transcriptFile is the on-disk YAML document of one session.
type transcriptFile struct {
	SessionID string         `yaml:"session_id"`
	Messages  []core.Message `yaml:"messages"`
}

// FileStore persists each transcript as a YAML document <dir>/<session id>.yaml.
// Writes go to a temporary file first and are renamed into place.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.dir, sessionID+fileExt), nil
}

// Load reads the transcript of sessionID.
func (s *FileStore) Load(_ context.Context, sessionID string) ([]core.Message, error) {
	p, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var doc transcriptFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", sessionID, err)
	}
	if doc.Messages == nil {
		doc.Messages = []core.Message{}
	}
	return doc.Messages, nil
}

// Save writes the transcript of sessionID.
func (s *FileStore) Save(_ context.Context, sessionID string, messages []core.Message) error {
	p, err := s.path(sessionID)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(transcriptFile{SessionID: sessionID, Messages: messages})
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+sessionID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close transcript: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("rename transcript: %w", err)
	}
	return nil
}

// List returns the stored session ids in sorted order.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the transcript file. Deleting an unknown id is not an error.
func (s *FileStore) Delete(_ context.Context, sessionID string) error {
	p, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

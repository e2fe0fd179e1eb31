package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knotbyt/BF6-application/internal/clan"
)

// FileStore keeps the collection in one JSON file, two-space indented, the
// layout external tools and seed data use. Saves are atomic: the collection
// is written to a temp file in the same directory and renamed over the
// original, so a concurrent Load never sees a partial write.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Init creates an empty collection file if none exists yet.
func (s *FileStore) Init() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return s.write([]clan.Clan{})
}

func (s *FileStore) Load(ctx context.Context) ([]clan.Clan, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}
	var clans []clan.Clan
	if err := json.Unmarshal(data, &clans); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, s.path, err)
	}
	if clans == nil {
		clans = []clan.Clan{}
	}
	return clans, nil
}

func (s *FileStore) Save(ctx context.Context, clans []clan.Clan) error {
	if clans == nil {
		clans = []clan.Clan{}
	}
	if err := s.write(clans); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func (s *FileStore) write(clans []clan.Clan) error {
	data, err := json.MarshalIndent(clans, "", "  ")
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".clans-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

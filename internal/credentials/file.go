package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

const defaultCredentialsPath = "~/.config/remindctl/credentials.toml"

// DefaultPath returns the default credentials file path.
func DefaultPath() string {
	return defaultCredentialsPath
}

// FileStore persists the pair as a TOML table named after its key.
//
//	["apptremind.tokens"]
//	access_token = "..."
//	refresh_token = "..."
//
// The file is re-read on every Get so that separate processes sharing the file
// observe each other's refreshes.
type FileStore struct {
	path string
	key  string
	log  zerolog.Logger

	mu sync.Mutex
}

// NewFileStore resolves path (empty uses the default, "~" is expanded) and
// returns a store keyed by key (empty uses DefaultKey).
func NewFileStore(path, key string, log zerolog.Logger) (*FileStore, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials path: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &FileStore{path: resolved, key: key, log: log}, nil
}

// Path returns the resolved file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(context.Context) (Pair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("credentials unreadable, treating as signed out")
		}
		return Pair{}, false
	}

	doc := map[string]Pair{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("credentials corrupt, treating as signed out")
		return Pair{}, false
	}
	pair, ok := doc[s.key]
	if !ok || !pair.Complete() {
		return Pair{}, false
	}
	return pair, true
}

func (s *FileStore) Set(_ context.Context, pair Pair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(map[string]Pair{s.key: pair})
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path via a temp file and rename so a reader never
// sees a half-written pair.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultCredentialsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

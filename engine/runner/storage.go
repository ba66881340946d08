package runner

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Storage is the host's managed file store. Tasks read referenced files and
// persist generated ones through this boundary; the host decides where the
// bytes actually live.
type Storage interface {
	// IsInternal reports whether the URI uses the store's internal scheme.
	IsInternal(uri string) bool
	// GetFile opens an internal URI for reading.
	GetFile(ctx context.Context, uri string) (io.ReadCloser, error)
	// PutFile copies a local file into the store and returns its internal URI.
	PutFile(ctx context.Context, localPath string) (string, error)
}

// DefaultScheme is the internal-storage URI scheme (internal:///path).
const DefaultScheme = "internal"

// LocalStorage implements Storage over an afero filesystem. Used for local
// runs and tests; the production host plugs in its own implementation.
type LocalStorage struct {
	fs     afero.Fs
	root   string
	scheme string
}

func NewLocalStorage(root string) *LocalStorage {
	return NewLocalStorageFs(afero.NewOsFs(), root)
}

func NewLocalStorageFs(fs afero.Fs, root string) *LocalStorage {
	return &LocalStorage{fs: fs, root: root, scheme: DefaultScheme}
}

func (s *LocalStorage) IsInternal(uri string) bool {
	return strings.HasPrefix(uri, s.scheme+"://")
}

func (s *LocalStorage) GetFile(_ context.Context, uri string) (io.ReadCloser, error) {
	rel, err := s.relPath(uri)
	if err != nil {
		return nil, err
	}
	file, err := s.fs.Open(path.Join(s.root, rel))
	if err != nil {
		return nil, fmt.Errorf("failed to open stored file %s: %w", uri, err)
	}
	return file, nil
}

func (s *LocalStorage) PutFile(_ context.Context, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read local file %s: %w", localPath, err)
	}
	name := path.Join("files", uuid.NewString()+path.Ext(localPath))
	target := path.Join(s.root, name)
	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return fmt.Sprintf("%s:///%s", s.scheme, name), nil
}

// Put writes raw bytes directly under the given name, mainly for seeding
// test fixtures.
func (s *LocalStorage) Put(name string, data []byte) (string, error) {
	target := path.Join(s.root, name)
	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return fmt.Sprintf("%s:///%s", s.scheme, name), nil
}

func (s *LocalStorage) relPath(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid storage URI %s: %w", uri, err)
	}
	if parsed.Scheme != s.scheme {
		return "", fmt.Errorf("URI %s does not use the %s scheme", uri, s.scheme)
	}
	return strings.TrimPrefix(parsed.Path, "/"), nil
}

type nopStorage struct{}

func (nopStorage) IsInternal(string) bool {
	return false
}

func (nopStorage) GetFile(context.Context, string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("no storage configured for this execution")
}

func (nopStorage) PutFile(context.Context, string) (string, error) {
	return "", fmt.Errorf("no storage configured for this execution")
}

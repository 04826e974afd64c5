package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStore keeps blobs under a local directory. With a public base URL its
// links point at the gateway's /assets route, otherwise at file:// paths.
type FSStore struct {
	base      string
	publicURL string
}

func NewFSStore(base, publicURL string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// cleanKey keeps keys inside the base directory.
func cleanKey(key string) (string, error) {
	k := strings.TrimPrefix(path.Clean("/"+key), "/")
	if k == "" || k == "." {
		return "", errors.New("empty key")
	}
	return k, nil
}

func (s *FSStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.base, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return k, nil
}

func (s *FSStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.base, filepath.FromSlash(k)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *FSStore) URL(_ context.Context, key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.publicURL != "" {
		return s.publicURL + "/assets/" + k, nil
	}
	abs, err := filepath.Abs(filepath.Join(s.base, filepath.FromSlash(k)))
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

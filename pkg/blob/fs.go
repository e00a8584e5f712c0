package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// FSStore writes artifacts as plain files under a root directory.
// Keys map to relative paths. No sidecar files are created, so the
// directory holds exactly the artifacts.
type FSStore struct {
	root string
}

// NewFS returns a filesystem store rooted at root, creating it if needed.
func NewFS(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.NewValidationError("root", "output directory required", root)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output directory %s", root)
	}
	return &FSStore{root: root}, nil
}

// Root returns the directory the store writes to.
func (s *FSStore) Root() string { return s.root }

func (s *FSStore) Driver() Driver { return DriverFilesystem }

func (s *FSStore) pathFor(key string) (string, error) {
	k, err := validateKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Put streams r to a temporary file next to the target and renames it into
// place, so a failed write never leaves a truncated artifact behind.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Info{}, errors.WithStack(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return Info{}, errors.WithStack(err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		_ = tmp.Close()
		return Info{}, errors.WithStack(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Info{}, errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, errors.WithStack(err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return Info{}, errors.WithStack(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Info{}, errors.WithStack(err)
	}

	return Info{
		Key:          key,
		Size:         size,
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(h.Sum(nil)),
		Metadata:     cloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
		Location:     path,
	}, nil
}

// Get opens the artifact. Content type and metadata are not persisted and
// come back empty.
func (s *FSStore) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return Info{}, nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, nil, errors.Wrapf(ErrNotFound, "%s", key)
	}
	if err != nil {
		return Info{}, nil, errors.WithStack(err)
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return Info{}, nil, errors.WithStack(err)
	}
	return Info{Key: key, Size: st.Size(), LastModified: st.ModTime().UTC(), Location: path}, file, nil
}

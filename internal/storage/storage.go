package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/crate/internal/shared"
)

const (
	DirPermissions  = 0o755
	FilePermissions = 0o644
	tempPattern     = ".crate-upload-*"
)

// Blob describes a stored audio file.
type Blob struct {
	Name string
	Size int64
}

// Store is a flat filesystem blob store rooted at a single directory.
type Store struct {
	root       string
	extensions []string
}

// New creates the root directory if needed and returns a store that lists files with the given extensions.
func New(root string, extensions []string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: songs directory", shared.ErrMissingConfig)
	}

	if err := os.MkdirAll(root, DirPermissions); err != nil {
		return nil, shared.Storage("create songs directory", err)
	}

	exts := make([]string, len(extensions))
	for i, ext := range extensions {
		exts[i] = strings.ToLower(ext)
	}

	return &Store{root: root, extensions: exts}, nil
}

// Root returns the directory blobs are stored in.
func (s *Store) Root() string { return s.root }

// IsAudio reports whether name carries one of the store's audio extensions.
func (s *Store) IsAudio(name string) bool {
	return slices.Contains(s.extensions, strings.ToLower(filepath.Ext(name)))
}

// ResolvePath maps a blob name to its location on disk.
//
// Empty names, absolute paths, path separators, NUL bytes and dot segments are rejected with [shared.ErrUnsafeName].
func (s *Store) ResolvePath(name string) (string, error) {
	switch {
	case strings.TrimSpace(name) == "":
		return "", fmt.Errorf("%w: empty name", shared.ErrUnsafeName)
	case strings.ContainsAny(name, "/\\\x00"):
		return "", fmt.Errorf("%w: %q", shared.ErrUnsafeName, name)
	case name == "." || name == "..":
		return "", fmt.Errorf("%w: %q", shared.ErrUnsafeName, name)
	case filepath.IsAbs(name) || filepath.VolumeName(name) != "":
		return "", fmt.Errorf("%w: %q", shared.ErrUnsafeName, name)
	}
	return filepath.Join(s.root, name), nil
}

// Put writes r to name, replacing any existing blob.
//
// Data goes to a temp file in the root, is synced, then renamed into place, so readers see either the old or the new content.
func (s *Store) Put(name string, r io.Reader) (int64, error) {
	dest, err := s.ResolvePath(name)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.root, tempPattern)
	if err != nil {
		return 0, shared.Storage("create temp file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return 0, shared.Storage("write blob", err)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, shared.Storage("sync blob", err)
	}

	if err := tmp.Chmod(FilePermissions); err != nil {
		cleanup()
		return 0, shared.Storage("chmod blob", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, shared.Storage("close blob", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return 0, shared.Storage("place blob", err)
	}
	return n, nil
}

// Open returns a reader for the named blob. A missing blob fails with [shared.ErrSongNotFound].
func (s *Store) Open(name string) (*os.File, error) {
	path, err := s.ResolvePath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSongNotFound, name)
	}
	if err != nil {
		return nil, shared.Storage("open blob", err)
	}
	return f, nil
}

// Stat describes the named blob.
func (s *Store) Stat(name string) (Blob, error) {
	path, err := s.ResolvePath(name)
	if err != nil {
		return Blob{}, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Blob{}, fmt.Errorf("%w: %s", shared.ErrSongNotFound, name)
	}
	if err != nil {
		return Blob{}, shared.Storage("stat blob", err)
	}
	if info.IsDir() {
		return Blob{}, fmt.Errorf("%w: %s", shared.ErrSongNotFound, name)
	}
	return Blob{Name: name, Size: info.Size()}, nil
}

// Exists reports whether the named blob is present.
func (s *Store) Exists(name string) (bool, error) {
	_, err := s.Stat(name)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Rename moves a blob to a new name.
//
// Fails with [shared.ErrSongNotFound] when oldName is missing and [shared.ErrSongExists] when newName is taken.
// Callers serialize renames; the existence check and the move are not atomic with respect to other writers.
func (s *Store) Rename(oldName, newName string) error {
	from, err := s.ResolvePath(oldName)
	if err != nil {
		return err
	}
	to, err := s.ResolvePath(newName)
	if err != nil {
		return err
	}

	if _, err := s.Stat(oldName); err != nil {
		return err
	}

	if oldName != newName {
		exists, err := s.Exists(newName)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", shared.ErrSongExists, newName)
		}
	}

	if err := os.Rename(from, to); err != nil {
		return shared.Storage("rename blob", err)
	}
	return nil
}

// Remove deletes the named blob. Removing a missing blob fails with [shared.ErrSongNotFound].
func (s *Store) Remove(name string) error {
	path, err := s.ResolvePath(name)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", shared.ErrSongNotFound, name)
	}
	if err != nil {
		return shared.Storage("remove blob", err)
	}
	return nil
}

// List enumerates stored audio blobs sorted by name. Directories, temp files and other extensions are skipped.
func (s *Store) List() ([]Blob, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, shared.Storage("read songs directory", err)
	}

	blobs := []Blob{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !s.IsAudio(name) {
			continue
		}

		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, shared.Storage("stat blob", err)
		}
		blobs = append(blobs, Blob{Name: name, Size: info.Size()})
	}

	// ReadDir already sorts by filename.
	return blobs, nil
}

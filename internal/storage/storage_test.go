package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/crate/internal/shared"
)

var testExtensions = []string{".mp3", ".ogg"}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir(), testExtensions)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func readBlob(t *testing.T, s *Store, name string) string {
	t.Helper()

	f, err := s.Open(name)
	if err != nil {
		t.Fatalf("failed to open %s: %v", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestResolvePath(t *testing.T) {
	s := newTestStore(t)

	t.Run("Accepts", func(t *testing.T) {
		for _, name := range []string{"A.mp3", "My Song.ogg", "a..b.mp3", ".hidden.mp3"} {
			path, err := s.ResolvePath(name)
			if err != nil {
				t.Errorf("%q: unexpected error %v", name, err)
				continue
			}
			if filepath.Dir(path) != s.Root() {
				t.Errorf("%q resolved outside root: %s", name, path)
			}
		}
	})

	t.Run("Rejects", func(t *testing.T) {
		for _, name := range []string{"", "  ", ".", "..", "../etc/passwd", "a/b.mp3", `a\b.mp3`, "/abs.mp3", "nul\x00.mp3"} {
			_, err := s.ResolvePath(name)
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("%q: expected invalid input, got %v", name, err)
			}
		}
	})
}

func TestPut(t *testing.T) {
	t.Run("WritesAndOverwrites", func(t *testing.T) {
		s := newTestStore(t)

		n, err := s.Put("A.mp3", strings.NewReader("first"))
		if err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		if n != 5 {
			t.Errorf("expected 5 bytes written, got %d", n)
		}

		if _, err := s.Put("A.mp3", strings.NewReader("second")); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}
		if got := readBlob(t, s, "A.mp3"); got != "second" {
			t.Errorf("expected overwritten content, got %q", got)
		}
	})

	t.Run("LeavesNoTempFiles", func(t *testing.T) {
		s := newTestStore(t)

		if _, err := s.Put("A.mp3", strings.NewReader("data")); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		entries, err := os.ReadDir(s.Root())
		if err != nil {
			t.Fatalf("failed to read root: %v", err)
		}
		if len(entries) != 1 || entries[0].Name() != "A.mp3" {
			t.Errorf("unexpected directory contents: %v", entries)
		}
	})

	t.Run("UnsafeName", func(t *testing.T) {
		s := newTestStore(t)

		if _, err := s.Put("../escape.mp3", strings.NewReader("x")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})
}

func TestOpenAndStat(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Open("missing.mp3"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found from Open, got %v", err)
	}
	if _, err := s.Stat("missing.mp3"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found from Stat, got %v", err)
	}

	if _, err := s.Put("A.mp3", strings.NewReader("abc")); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	blob, err := s.Stat("A.mp3")
	if err != nil {
		t.Fatalf("failed to stat: %v", err)
	}
	if blob.Size != 3 {
		t.Errorf("expected size 3, got %d", blob.Size)
	}

	exists, err := s.Exists("A.mp3")
	if err != nil || !exists {
		t.Errorf("expected blob to exist, got %v (%v)", exists, err)
	}
}

func TestRename(t *testing.T) {
	t.Run("Moves", func(t *testing.T) {
		s := newTestStore(t)
		s.Put("A.mp3", strings.NewReader("a"))

		if err := s.Rename("A.mp3", "B.mp3"); err != nil {
			t.Fatalf("failed to rename: %v", err)
		}
		if exists, _ := s.Exists("A.mp3"); exists {
			t.Error("expected A.mp3 to be gone")
		}
		if got := readBlob(t, s, "B.mp3"); got != "a" {
			t.Errorf("unexpected content %q", got)
		}
	})

	t.Run("TargetTaken", func(t *testing.T) {
		s := newTestStore(t)
		s.Put("A.mp3", strings.NewReader("a"))
		s.Put("B.mp3", strings.NewReader("b"))

		if err := s.Rename("A.mp3", "B.mp3"); !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if got := readBlob(t, s, "B.mp3"); got != "b" {
			t.Errorf("target was overwritten: %q", got)
		}
	})

	t.Run("SourceMissing", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.Rename("A.mp3", "B.mp3"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	s.Put("A.mp3", strings.NewReader("a"))

	if err := s.Remove("A.mp3"); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	if err := s.Remove("A.mp3"); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"b.ogg", "a.MP3", "notes.txt", ".crate-upload-123"} {
		if err := os.WriteFile(filepath.Join(s.Root(), name), []byte("x"), FilePermissions); err != nil {
			t.Fatalf("failed to seed %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(s.Root(), "dir.mp3"), DirPermissions); err != nil {
		t.Fatalf("failed to seed dir: %v", err)
	}

	blobs, err := s.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}

	var names []string
	for _, b := range blobs {
		names = append(names, b.Name)
	}
	if strings.Join(names, ",") != "a.MP3,b.ogg" {
		t.Errorf("unexpected listing: %v", names)
	}
}

func TestNewRequiresRoot(t *testing.T) {
	if _, err := New("", testExtensions); !errors.Is(err, shared.ErrMissingConfig) {
		t.Fatalf("expected missing config, got %v", err)
	}
}

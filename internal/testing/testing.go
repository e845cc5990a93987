// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/storage"
)

// AudioExtensions is the extension set test libraries accept.
var AudioExtensions = []string{".mp3", ".ogg"}

// NewLibrary builds a library over an in-memory database and a temporary songs directory.
func NewLibrary(t *testing.T, opts ...library.Option) *library.Library {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	blobs, err := storage.New(t.TempDir(), AudioExtensions)
	if err != nil {
		t.Fatalf("Failed to create blob store: %v", err)
	}

	opts = append([]library.Option{library.WithLogger(log.New(io.Discard))}, opts...)
	return library.New(db, blobs, opts...)
}

// WriteFiles creates each named file under dir with its name as content and returns their paths.
func WriteFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()

	paths := make([]string, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(name), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		paths[i] = path
	}
	return paths
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// FReader simulates a failure while reading an upload body
type FReader struct{}

func (f *FReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

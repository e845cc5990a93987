package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/tasks"
	tu "github.com/desertthunder/crate/internal/testing"
)

// newTestRunner returns a runner whose database and songs directory live in a temporary directory.
func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "crate.db")
	config.Library.SongsDir = filepath.Join(dir, "songs")
	config.Library.Extensions = tu.AudioExtensions
	config.Library.Watch = false

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: log.New(io.Discard),
		Output: output,
	})
	return runner, output
}

// run executes args against a fresh command tree so flag state never leaks between invocations.
func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "crate", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"crate"}, args...))
}

func mustRun(t *testing.T, r *Runner, output *bytes.Buffer, args ...string) string {
	t.Helper()
	output.Reset()
	if err := run(r, args...); err != nil {
		t.Fatalf("crate %s: unexpected error: %v", strings.Join(args, " "), err)
	}
	return output.String()
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		var names []string
		for _, c := range runner.register() {
			names = append(names, c.Name)
		}

		expected := []string{"setup", "serve", "songs", "playlists", "import", "sweep", "tui"}
		if strings.Join(names, ",") != strings.Join(expected, ",") {
			t.Errorf("expected commands %v, got %v", expected, names)
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("formats output", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("%d song(s)\n", 3); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "3 song(s)\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("writePlainln surrounds with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("done")
			if output.String() != "\ndone\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writePlain("text"); err == nil {
				t.Error("expected error from failing writer")
			}
		})
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config writes the template once", func(t *testing.T) {
		runner, output := newTestRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		out := mustRun(t, runner, output, "setup", "config", "--config", path)
		if !strings.Contains(out, path) {
			t.Errorf("expected output to mention %s, got %q", path, out)
		}
		tu.AssertFileExists(t, path)

		err := run(runner, "setup", "config", "--config", path)
		if !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected conflict on existing config, got %v", err)
		}

		mustRun(t, runner, output, "setup", "config", "--config", path, "--force")
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("expected rewritten config to load, got %v", err)
		}
	})

	t.Run("database migrates the configured path", func(t *testing.T) {
		runner, output := newTestRunner(t)
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "library.db")
		songsDir := filepath.Join(dir, "music")
		configPath := filepath.Join(dir, "config.toml")

		content := fmt.Sprintf("[library]\nsongs_dir = %q\nextensions = [\".mp3\"]\n\n[database]\npath = %q\n\n[server]\nport = 3000\nmax_upload_mb = 1\n", songsDir, dbPath)
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		out := mustRun(t, runner, output, "setup", "database", "--config", configPath)
		if !strings.Contains(out, dbPath) {
			t.Errorf("expected output to mention %s, got %q", dbPath, out)
		}
		tu.AssertFileExists(t, dbPath)
		tu.AssertDirExists(t, songsDir)
	})
}

func TestSongsCommands(t *testing.T) {
	runner, output := newTestRunner(t)
	src := t.TempDir()
	paths := tu.WriteFiles(t, src, "Alpha.mp3", "Beta.mp3")

	out := mustRun(t, runner, output, "songs", "upload", paths[0], paths[1])
	if !strings.Contains(out, "Uploaded 2 of 2") {
		t.Errorf("expected upload summary, got %q", out)
	}

	listSongs := func(t *testing.T) []models.Song {
		t.Helper()
		var songs []models.Song
		out := mustRun(t, runner, output, "songs", "list", "--json")
		if err := json.Unmarshal([]byte(out), &songs); err != nil {
			t.Fatalf("failed to decode songs: %v\n%s", err, out)
		}
		return songs
	}

	t.Run("list orders by id", func(t *testing.T) {
		songs := listSongs(t)
		if len(songs) != 2 || songs[0].ID != "Alpha.mp3" || songs[1].ID != "Beta.mp3" {
			t.Fatalf("unexpected songs %+v", songs)
		}
		if songs[0].Name != "Alpha" {
			t.Errorf("expected display name without extension, got %q", songs[0].Name)
		}
	})

	t.Run("plain list shows unknown durations", func(t *testing.T) {
		out := mustRun(t, runner, output, "songs", "list")
		if !strings.Contains(out, "Songs (2)") || !strings.Contains(out, "--:--") {
			t.Errorf("unexpected listing %q", out)
		}
	})

	t.Run("rename keeps the extension", func(t *testing.T) {
		out := mustRun(t, runner, output, "songs", "rename", "Beta.mp3", "Gamma")
		if !strings.Contains(out, "Gamma.mp3") {
			t.Errorf("expected new id in output, got %q", out)
		}
		tu.AssertFileExists(t, filepath.Join(runner.config.Library.SongsDir, "Gamma.mp3"))
	})

	t.Run("rename onto an existing song conflicts", func(t *testing.T) {
		err := run(runner, "songs", "rename", "Gamma.mp3", "Alpha")
		if !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("tag sets artist and duration", func(t *testing.T) {
		out := mustRun(t, runner, output, "songs", "tag", "--artist", "Trane", "--duration", "214", "Alpha.mp3")
		if !strings.Contains(out, "Trane") || !strings.Contains(out, "3:34") {
			t.Errorf("unexpected tag output %q", out)
		}

		songs := listSongs(t)
		if songs[0].Artist != "Trane" || songs[0].DurationSeconds != 214 {
			t.Errorf("expected tags to persist, got %+v", songs[0])
		}

		if err := run(runner, "songs", "tag", "Alpha.mp3"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument without tags, got %v", err)
		}
	})

	t.Run("delete removes the song", func(t *testing.T) {
		mustRun(t, runner, output, "songs", "delete", "Gamma.mp3")
		songs := listSongs(t)
		if len(songs) != 1 || songs[0].ID != "Alpha.mp3" {
			t.Errorf("unexpected songs after delete %+v", songs)
		}
	})

	t.Run("unknown song", func(t *testing.T) {
		err := run(runner, "songs", "delete", "Missing.mp3")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("missing arguments", func(t *testing.T) {
		if err := run(runner, "songs", "rename", "Alpha.mp3"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument for rename, got %v", err)
		}
		if err := run(runner, "songs", "upload"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument for upload, got %v", err)
		}
	})

	t.Run("upload of an unsupported file fails", func(t *testing.T) {
		notes := tu.WriteFiles(t, src, "notes.txt")
		err := run(runner, "songs", "upload", notes[0])
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})
}

func TestPlaylistsCommands(t *testing.T) {
	runner, output := newTestRunner(t)
	paths := tu.WriteFiles(t, t.TempDir(), "One.mp3", "Two.mp3")
	mustRun(t, runner, output, "songs", "upload", paths[0], paths[1])

	show := func(t *testing.T, name string) models.PlaylistExport {
		t.Helper()
		var export models.PlaylistExport
		out := mustRun(t, runner, output, "playlists", "show", "--json", name)
		if err := json.Unmarshal([]byte(out), &export); err != nil {
			t.Fatalf("failed to decode playlist: %v\n%s", err, out)
		}
		return export
	}

	mustRun(t, runner, output, "playlists", "create", "Road Trip")
	mustRun(t, runner, output, "playlists", "add", "Road Trip", "Two.mp3")
	mustRun(t, runner, output, "playlists", "add", "Road Trip", "One.mp3")

	t.Run("show keeps insertion order", func(t *testing.T) {
		export := show(t, "Road Trip")
		if len(export.Songs) != 2 || export.Songs[0].ID != "Two.mp3" || export.Songs[1].ID != "One.mp3" {
			t.Errorf("unexpected playlist %+v", export)
		}
	})

	t.Run("adding twice is a no-op", func(t *testing.T) {
		out := mustRun(t, runner, output, "playlists", "add", "Road Trip", "One.mp3")
		if !strings.Contains(out, "already in") {
			t.Errorf("expected already-present message, got %q", out)
		}
		if got := len(show(t, "Road Trip").Songs); got != 2 {
			t.Errorf("expected 2 songs, got %d", got)
		}
	})

	t.Run("create conflicts on duplicate", func(t *testing.T) {
		err := run(runner, "playlists", "create", "Road Trip")
		if !errors.Is(err, shared.ErrPlaylistExists) {
			t.Errorf("expected playlist exists, got %v", err)
		}
	})

	t.Run("rename keeps songs", func(t *testing.T) {
		mustRun(t, runner, output, "playlists", "rename", "Road Trip", "Commute")
		if got := len(show(t, "Commute").Songs); got != 2 {
			t.Errorf("expected 2 songs after rename, got %d", got)
		}
		if err := run(runner, "playlists", "show", "Road Trip"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected old name to be gone, got %v", err)
		}
	})

	t.Run("remove", func(t *testing.T) {
		out := mustRun(t, runner, output, "playlists", "remove", "Commute", "Two.mp3")
		if !strings.Contains(out, "Removed") {
			t.Errorf("unexpected output %q", out)
		}
		out = mustRun(t, runner, output, "playlists", "remove", "Commute", "Two.mp3")
		if !strings.Contains(out, "is not in") {
			t.Errorf("expected not-present message, got %q", out)
		}
	})

	t.Run("list in creation order", func(t *testing.T) {
		mustRun(t, runner, output, "playlists", "create", "Alpha")

		var playlists []models.PlaylistSongs
		out := mustRun(t, runner, output, "playlists", "list", "--json")
		if err := json.Unmarshal([]byte(out), &playlists); err != nil {
			t.Fatalf("failed to decode playlists: %v", err)
		}
		if len(playlists) != 2 || playlists[0].Name != "Commute" || playlists[1].Name != "Alpha" {
			t.Errorf("unexpected playlists %+v", playlists)
		}

		out = mustRun(t, runner, output, "playlists", "list")
		if !strings.Contains(out, "Playlists (2)") {
			t.Errorf("unexpected listing %q", out)
		}
	})

	t.Run("export", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		out := mustRun(t, runner, output, "playlists", "export", "--format", "csv", "--output", dir, "Commute")
		if !strings.Contains(out, "Exported 1 of 1") {
			t.Errorf("unexpected export output %q", out)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "Commute.csv"))
		tu.AssertFileExists(t, filepath.Join(dir, tasks.ManifestName))
	})

	t.Run("export rejects unknown format", func(t *testing.T) {
		err := run(runner, "playlists", "export", "--format", "xml")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("export of unknown playlist", func(t *testing.T) {
		err := run(runner, "playlists", "export", "--output", t.TempDir(), "Nope")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected playlist not found, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		mustRun(t, runner, output, "playlists", "delete", "Alpha")
		if err := run(runner, "playlists", "delete", "Alpha"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected playlist not found, got %v", err)
		}
	})
}

func TestImportCommand(t *testing.T) {
	runner, output := newTestRunner(t)
	src := t.TempDir()
	tu.WriteFiles(t, src, "b.mp3", "a.ogg", "cover.jpg", "nested/c.mp3")

	t.Run("collects a directory into a playlist", func(t *testing.T) {
		mustRun(t, runner, output, "import", "--playlist", "Imported", "--json", src)

		var summary importSummary
		if err := json.Unmarshal(output.Bytes(), &summary); err != nil {
			t.Fatalf("failed to decode summary: %v\n%s", err, output.String())
		}
		if summary.Imported != 2 || summary.Failed != 0 {
			t.Errorf("expected 2 imported, got %+v", summary)
		}
		if summary.Skipped == 0 {
			t.Errorf("expected the non-audio file to be skipped, got %+v", summary)
		}
		if summary.Playlist != "Imported" || summary.Added != 2 {
			t.Errorf("expected 2 songs added to Imported, got %+v", summary)
		}
	})

	t.Run("recursive descends into subdirectories", func(t *testing.T) {
		out := mustRun(t, runner, output, "import", "--recursive", src)
		if !strings.Contains(out, "Imported 3 of 3") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("requires a path", func(t *testing.T) {
		if err := run(runner, "import"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument, got %v", err)
		}
	})
}

func TestSweepCommand(t *testing.T) {
	runner, output := newTestRunner(t)

	out := mustRun(t, runner, output, "sweep")
	if !strings.Contains(out, "in sync") {
		t.Errorf("expected in-sync message, got %q", out)
	}

	tu.WriteFiles(t, runner.config.Library.SongsDir, "Dropped In.mp3")
	out = mustRun(t, runner, output, "sweep")
	if !strings.Contains(out, "+ Dropped In.mp3") {
		t.Errorf("expected adopted file, got %q", out)
	}

	var songs []models.Song
	out = mustRun(t, runner, output, "songs", "list", "--json")
	if err := json.Unmarshal([]byte(out), &songs); err != nil {
		t.Fatalf("failed to decode songs: %v", err)
	}
	if len(songs) != 1 || songs[0].ID != "Dropped In.mp3" {
		t.Errorf("unexpected songs %+v", songs)
	}
}

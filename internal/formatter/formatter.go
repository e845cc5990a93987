// package formatter writes playlists out as M3U, CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// Format names an export file format.
type Format string

const (
	FormatM3U      Format = "m3u"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// Formats lists every supported format in help-text order.
var Formats = []Format{FormatM3U, FormatCSV, FormatMarkdown, FormatText, FormatJSON}

// ParseFormat resolves a user-supplied format name. "md" and "text" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m3u", "m3u8":
		return FormatM3U, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidInput, s)
	}
}

// Extension returns the file extension, with leading dot, used for f.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatM3U, FormatCSV, FormatText, FormatJSON:
		return "." + string(f)
	default:
		return ".txt"
	}
}

// ExportToM3U renders an extended M3U playlist.
//
// Entries point at songsDir/<id> when songsDir is set and at the bare id otherwise.
func ExportToM3U(export *models.PlaylistExport, songsDir string) []byte {
	var buf bytes.Buffer

	buf.WriteString("#EXTM3U\n")
	fmt.Fprintf(&buf, "#PLAYLIST:%s\n", export.Name)
	for _, song := range export.Songs {
		duration := song.DurationSeconds
		if duration <= 0 {
			duration = -1
		}
		fmt.Fprintf(&buf, "#EXTINF:%d,%s\n", duration, songTitle(song))

		location := song.ID
		if songsDir != "" {
			location = filepath.Join(songsDir, song.ID)
		}
		buf.WriteString(location + "\n")
	}

	return buf.Bytes()
}

// ExportToCSV converts a playlist to CSV with columns: Position, ID, Name, Artist, Duration
func ExportToCSV(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Name", "Artist", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, song := range export.Songs {
		record := []string{
			strconv.Itoa(i + 1),
			song.ID,
			song.Name,
			song.Artist,
			strconv.Itoa(song.DurationSeconds),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist to a Markdown document
func ExportToMarkdown(export *models.PlaylistExport) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Name)
	fmt.Fprintf(&buf, "**Songs**: %d\n\n", len(export.Songs))

	buf.WriteString("## Songs\n\n")
	if len(export.Songs) == 0 {
		buf.WriteString("_This playlist is empty._\n")
	}
	for i, song := range export.Songs {
		fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, songTitle(song), shared.FormatDuration(song.DurationSeconds))
	}

	return buf.Bytes()
}

// ExportToText converts a playlist to plain text
func ExportToText(export *models.PlaylistExport) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Name)
	fmt.Fprintf(&buf, "Songs: %d\n\n", len(export.Songs))

	for i, song := range export.Songs {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, songTitle(song))
	}

	return buf.Bytes()
}

// Render encodes export in format f.
func Render(export *models.PlaylistExport, f Format, songsDir string) ([]byte, error) {
	switch f {
	case FormatM3U:
		return ExportToM3U(export, songsDir), nil
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export), nil
	case FormatText:
		return ExportToText(export), nil
	case FormatJSON:
		return shared.MarshalJSON(export, true)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidInput, f)
	}
}

// FileName returns the file a playlist is written to: its name with separators replaced, plus the format extension.
func FileName(playlist string, f Format) string {
	name := models.SanitizeName(playlist)
	if name == "" || name == "." || name == ".." {
		name = "playlist"
	}
	return name + f.Extension()
}

// WriteExport renders export and writes it into dir, returning the file path.
func WriteExport(export *models.PlaylistExport, f Format, dir, songsDir string) (string, error) {
	data, err := Render(export, f, songsDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, FileName(export.Name, f))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s export: %w", f, err)
	}
	return path, nil
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func songTitle(song models.Song) string {
	if song.Artist == "" {
		return song.Name
	}
	return song.Artist + " - " + song.Name
}

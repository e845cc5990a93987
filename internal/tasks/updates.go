package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ScanPaths Phase = iota
	UploadFiles
	CollectPlaylist
	ResolvePlaylists
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case ScanPaths:
		return "scan_paths"
	case UploadFiles:
		return "upload_files"
	case CollectPlaylist:
		return "collect_playlist"
	case ResolvePlaylists:
		return "resolve_playlists"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func scanUpdate(paths int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanPaths,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Scanning %d path(s)...", paths),
	}
}

func uploadUpdate(step, total int, res FileResult) ProgressUpdate {
	if res.Err != nil {
		return ProgressUpdate{
			Phase:   UploadFiles,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Path, res.Err),
			Data:    res,
		}
	}
	return ProgressUpdate{
		Phase:   UploadFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.ID),
		Data:    res,
	}
}

func collectUpdate(step, total int, playlist, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CollectPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s → %s", step, total, id, playlist),
	}
}

func resolveUpdate(step, total int, msg string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylists,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}

func exportCompletedUpdate(step, total int, name string, songs int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d songs)", step, total, name, songs),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

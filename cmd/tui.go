package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crate/internal/events"
	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/ui"
	"github.com/urfave/cli/v3"
)

// changeBuffer bounds the change notifications waiting for the TUI; overflow is dropped because any one
// notification triggers a full re-fetch.
const changeBuffer = 64

// TUI launches the interactive terminal UI over the local library.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = cmd.String("log-file")
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.ApplyLogConfig(fileLogger, r.config.Log)
	r.SetLogger(fileLogger)

	changes := events.NewRecorder(changeBuffer)
	lib, db, err := r.openLibrary(library.WithPublisher(changes))
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.config.Library.Watch {
		watcher, err := library.NewWatcher(lib, library.DefaultSettle)
		if err != nil {
			return err
		}
		watchDone := make(chan struct{})
		go func() {
			defer close(watchDone)
			if err := watcher.Run(ctx); err != nil {
				r.logger.Error("watcher stopped", "error", err)
			}
		}()
		defer func() {
			cancel()
			<-watchDone
		}()
	}

	model := ui.NewModel(ctx, lib, ui.Options{Changes: changes.Events()})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

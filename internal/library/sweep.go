package library

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/lo"

	"github.com/desertthunder/crate/internal/events"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/storage"
)

// SweepReport lists what a sweep changed.
type SweepReport struct {
	Adopted []string `json:"adopted"`
	Dropped []string `json:"dropped"`
}

// Changed reports whether the sweep touched anything.
func (r SweepReport) Changed() bool {
	return len(r.Adopted) > 0 || len(r.Dropped) > 0
}

// Sweep reconciles metadata with the blobs on disk.
//
// Audio files without metadata are registered as songs; metadata whose blob has disappeared is dropped,
// taking its playlist memberships with it.
func (l *Library) Sweep(ctx context.Context) (SweepReport, error) {
	l.catalog.Lock()
	defer l.catalog.Unlock()

	var report SweepReport

	blobs, err := l.blobs.List()
	if err != nil {
		return report, l.fail("sweep", err)
	}
	onDisk := lo.SliceToMap(blobs, func(b storage.Blob) (string, int64) {
		return b.Name, b.Size
	})

	err = shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		songs := repositories.NewSongRepository(tx)

		known, err := songs.List(ctx, nil)
		if err != nil {
			return err
		}
		knownIDs := lo.SliceToMap(known, func(s *models.PersistedSong) (string, bool) {
			return s.ID(), true
		})

		for _, song := range known {
			if _, ok := onDisk[song.ID()]; ok {
				continue
			}
			// The blob may live under a name the store does not list, such as a removed extension.
			exists, err := l.blobs.Exists(song.ID())
			if err != nil && !errors.Is(err, shared.ErrInvalidInput) {
				return err
			}
			if exists {
				continue
			}
			if err := songs.Delete(ctx, song.ID()); err != nil {
				return err
			}
			report.Dropped = append(report.Dropped, song.ID())
		}

		for _, blob := range blobs {
			if knownIDs[blob.Name] {
				continue
			}
			song := models.NewPersistedSong(shared.GenerateID(), blob.Name)
			song.SetSize(blob.Size)
			if err := songs.Create(ctx, song); err != nil {
				return err
			}
			report.Adopted = append(report.Adopted, blob.Name)
		}
		return nil
	})
	if err != nil {
		return SweepReport{}, l.fail("sweep", err)
	}

	if report.Changed() {
		l.logger.Info("swept library", "adopted", len(report.Adopted), "dropped", len(report.Dropped))
		l.publisher.Publish(ctx, events.New(events.LibrarySwept, ""))
	}
	return report, nil
}

// Adopt registers a single blob that appeared on disk. Known songs only have their size refreshed.
func (l *Library) Adopt(ctx context.Context, name string) (bool, error) {
	l.catalog.Lock()
	defer l.catalog.Unlock()

	blob, err := l.blobs.Stat(name)
	if err != nil {
		return false, l.fail("adopt song", err)
	}

	existed, err := l.register(ctx, name, blob.Size)
	if err != nil {
		return false, l.fail("adopt song", err)
	}

	if !existed {
		l.logger.Info("adopted song", "id", name)
		l.publisher.Publish(ctx, events.New(events.SongsUploaded, name))
	}
	return !existed, nil
}

// Forget drops a song whose blob vanished from disk. It is a no-op while the blob is still present.
func (l *Library) Forget(ctx context.Context, name string) (bool, error) {
	l.catalog.Lock()
	defer l.catalog.Unlock()

	exists, err := l.blobs.Exists(name)
	if err != nil {
		return false, l.fail("forget song", err)
	}
	if exists {
		return false, nil
	}

	var dropped bool
	err = shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		songs := repositories.NewSongRepository(tx)

		known, err := songs.Exists(ctx, name)
		if err != nil || !known {
			return err
		}
		if err := songs.Delete(ctx, name); err != nil {
			return err
		}
		dropped = true
		return nil
	})
	if err != nil {
		return false, l.fail("forget song", err)
	}

	if dropped {
		l.logger.Info("forgot song with missing audio", "id", name)
		l.publisher.Publish(ctx, events.New(events.SongDeleted, name))
	}
	return dropped, nil
}

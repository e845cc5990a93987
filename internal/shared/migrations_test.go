package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("parseMigrationName", func(t *testing.T) {
		version, name, direction, ok := parseMigrationName("0001_song_name_index_up.sql")
		if !ok || version != 1 || name != "song_name_index" || direction != "up" {
			t.Errorf("unexpected parse: %d %q %q %v", version, name, direction, ok)
		}

		if _, _, _, ok := parseMigrationName("README.md"); ok {
			t.Error("expected non-sql file to be skipped")
		}
		if _, _, _, ok := parseMigrationName("abc_create_up.sql"); ok {
			t.Error("expected non-numeric version to be skipped")
		}
		if _, _, _, ok := parseMigrationName("0002_create.sql"); ok {
			t.Error("expected file without direction to be skipped")
		}
	})

	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected at least one migration to be applied")
		}

		for _, table := range []string{"songs", "playlists", "playlist_songs"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var newCount int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&newCount)
		if err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if newCount >= count {
			t.Errorf("expected migration count to decrease after rollback, got %d (was %d)", newCount, count)
		}

		statuses, err := Migrations(db)
		if err != nil {
			t.Fatalf("failed to list migrations: %v", err)
		}
		if statuses[len(statuses)-1].Applied {
			t.Error("expected last migration to be reported as not applied after rollback")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})

	t.Run("Membership follows playlist and song rows", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		stmts := []string{
			"INSERT INTO songs (key, id, name, created_at, updated_at) VALUES ('k1', 'A.mp3', 'A', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)",
			"INSERT INTO playlists (name, created_at, updated_at) VALUES ('Mix', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)",
			"INSERT INTO playlist_songs (playlist_name, song_key, position, added_at) VALUES ('Mix', 'k1', 0, CURRENT_TIMESTAMP)",
			"UPDATE playlists SET name = 'Road' WHERE name = 'Mix'",
		}
		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				t.Fatalf("%s: %v", stmt, err)
			}
		}

		var playlist string
		if err := db.QueryRow("SELECT playlist_name FROM playlist_songs WHERE song_key = 'k1'").Scan(&playlist); err != nil {
			t.Fatalf("failed to read membership: %v", err)
		}
		if playlist != "Road" {
			t.Errorf("expected membership to follow the rename, got %q", playlist)
		}

		_, err = db.Exec("INSERT INTO playlist_songs (playlist_name, song_key, position, added_at) VALUES ('Road', 'missing', 1, CURRENT_TIMESTAMP)")
		if err == nil {
			t.Error("expected membership of an unknown song to be rejected")
		}

		if _, err := db.Exec("DELETE FROM songs WHERE key = 'k1'"); err != nil {
			t.Fatalf("failed to delete song: %v", err)
		}
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM playlist_songs").Scan(&count); err != nil {
			t.Fatalf("failed to count memberships: %v", err)
		}
		if count != 0 {
			t.Errorf("expected song delete to cascade, %d membership(s) left", count)
		}
	})

	t.Run("Foreign keys enforced", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		var enabled int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
			t.Fatalf("failed to read pragma: %v", err)
		}
		if enabled != 1 {
			t.Errorf("expected foreign keys on, got %d", enabled)
		}
	})
}

package postgres

import "testing"

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		file    string
		version int
		wantErr bool
	}{
		{"001_initial.sql", 1, false},
		{"012_attendance_device.sql", 12, false},
		{"1_initial.sql", 0, true},
		{"001_initial.txt", 0, true},
		{"001-Initial.sql", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			m, err := parseMigrationName(tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMigrationName(%q) error = %v, wantErr %v", tt.file, err, tt.wantErr)
			}
			if err == nil && m.version != tt.version {
				t.Errorf("parseMigrationName(%q) version = %d, want %d", tt.file, m.version, tt.version)
			}
		})
	}
}

func TestPendingMigrations(t *testing.T) {
	files := []string{"010_later.sql", "001_initial.sql", "002_embeddings.sql"}

	pending, err := pendingMigrations(files, map[string]bool{"001_initial.sql": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 2 || pending[0].file != "002_embeddings.sql" || pending[1].file != "010_later.sql" {
		t.Errorf("unexpected pending order %+v", pending)
	}

	if _, err := pendingMigrations([]string{"002_a.sql", "002_b.sql"}, nil); err == nil {
		t.Error("expected error for duplicate versions")
	}
	if _, err := pendingMigrations([]string{"notes.md"}, nil); err == nil {
		t.Error("expected error for unexpected file")
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	files, err := embeddedMigrationFiles()
	if err != nil {
		t.Fatalf("reading embedded migrations: %v", err)
	}
	pending, err := pendingMigrations(files, nil)
	if err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
	if len(pending) == 0 || pending[0].file != "001_initial.sql" {
		t.Errorf("expected 001_initial.sql first, got %+v", pending)
	}
}

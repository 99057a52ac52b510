package database

import (
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// 埋め込みマイグレーションがsourceとして読み込めることを検証
func TestMigrationsFS_LoadsAsSource(t *testing.T) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("failed to create migration source: %v", err)
	}
	defer source.Close()

	first, err := source.First()
	if err != nil {
		t.Fatalf("expected at least one migration: %v", err)
	}
	if first != 1 {
		t.Errorf("first migration version = %d, want 1", first)
	}
}

// up/downがペアで存在することを検証
func TestMigrations_UpDownPairs(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read migrations dir: %v", err)
	}

	ups := 0
	downs := 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}

	if ups == 0 {
		t.Fatal("expected at least one up migration")
	}
	if ups != downs {
		t.Errorf("up migrations = %d, down migrations = %d, want equal", ups, downs)
	}
}

// 初期スキーマが両テーブルを作成することを検証
func TestInitMigration_CreatesCoreTables(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read init migration: %v", err)
	}
	content := string(data)

	for _, table := range []string{"profiles", "resources"} {
		if !strings.Contains(content, table) {
			t.Errorf("init migration should create table %q", table)
		}
	}

	// ファイルメタデータのall-or-none制約
	if !strings.Contains(content, "resources_file_meta_all_or_none") {
		t.Error("init migration should enforce the file metadata all-or-none constraint")
	}
}

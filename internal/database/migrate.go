package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// session_kv テーブルのスキーマ。ファイル名は {version}_{title}.{up|down}.sql。
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator はセッションKVストアのスキーマ用のmigrateインスタンスを生成する。
// 埋め込みのマイグレーションにup/downの対が揃っていない場合はエラーを返す。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	if err := checkMigrationPairs(migrationsFS, "migrations"); err != nil {
		return nil, err
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のスキーマバージョンを返す。
// すでに最新の場合はエラーなしで現在のバージョンを返す。
// 前回の適用が途中で失敗していた（dirty）場合は手動での修復が必要なためエラーにする。
func RunMigrations(databaseURL string) (uint, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("session_kv schema is dirty at version %d", version)
	}
	return version, nil
}

// checkMigrationPairs は dir 内の各バージョンに up と down の両方があることを確認する。
func checkMigrationPairs(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	seen := make(map[string]map[string]bool)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		base := strings.TrimSuffix(name, ".sql")
		dot := strings.LastIndex(base, ".")
		if dot < 0 {
			return fmt.Errorf("migration %q has no direction", name)
		}
		direction := base[dot+1:]
		if direction != "up" && direction != "down" {
			return fmt.Errorf("migration %q has unknown direction %q", name, direction)
		}
		version := base[:dot]
		if seen[version] == nil {
			seen[version] = make(map[string]bool)
		}
		seen[version][direction] = true
	}
	if len(seen) == 0 {
		return errors.New("no migrations found")
	}

	versions := make([]string, 0, len(seen))
	for v := range seen {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	for _, v := range versions {
		if !seen[v]["up"] || !seen[v]["down"] {
			return fmt.Errorf("migration %s must have both up and down files", v)
		}
	}
	return nil
}

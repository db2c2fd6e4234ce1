// Package database はデータベース接続とスキーマ作成を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// migrationSource はドライバーごとのマイグレーションSQLの配置ディレクトリと
// golang-migrateに渡すURLを返す。
func migrationSource(target Target) (dir, migrateURL string, err error) {
	switch target.Driver {
	case DriverSQLite:
		return "migrations/sqlite", "sqlite3://" + target.DSN, nil
	case DriverPostgres:
		return "migrations/postgres", target.DSN, nil
	default:
		return "", "", fmt.Errorf("unsupported driver for migrations: %s", target.Driver)
	}
}

// NewMigrator はスキーマ作成用のmigrateインスタンスを生成する。
// databaseURLはOpenと同じ形式を受け付ける。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	target, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	dir, migrateURL, err := migrationSource(target)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はdrumming_dataとposture_dataのテーブルを作成する。
// 作成済みの場合はエラーなしで返る（起動のたびに呼び出してよい）。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

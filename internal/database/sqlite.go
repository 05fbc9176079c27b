package database

import (
	"os"
	"path/filepath"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/common/config"
	"github.com/glebarez/sqlite"
)

// NewSQLite creates a new SQLite-backed database. DBName is the database
// file path; ":memory:" yields an in-memory database.
func NewSQLite(cfg *config.DatabaseConfig) (Database, error) {
	if cfg.DBName != ":memory:" {
		if dir := filepath.Dir(cfg.DBName); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, wrapRepo(err)
			}
		}
	}

	return newGormDB(sqlite.Open(cfg.DBName))
}

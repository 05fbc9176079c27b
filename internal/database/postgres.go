package database

import (
	"fmt"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/common/config"
	"gorm.io/driver/postgres"
)

// NewPostgres creates a new PostgreSQL-backed database
func NewPostgres(cfg *config.DatabaseConfig) (Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)

	return newGormDB(postgres.Open(dsn))
}

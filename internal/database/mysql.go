package database

import (
	"fmt"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/common/config"
	"gorm.io/driver/mysql"
)

// NewMySQL creates a new MySQL-backed database
func NewMySQL(cfg *config.DatabaseConfig) (Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	return newGormDB(mysql.Open(dsn))
}

package database

import (
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	my := cfg.MySQL
	if my.Username == "" || my.Database == "" {
		return "", errors.New("mysql configuration requires username and database name")
	}

	host := my.Host
	if host == "" {
		host = "127.0.0.1"
	}

	port := my.Port
	if port == 0 {
		port = 3306
	}

	user := my.Username
	if my.Password != "" {
		user = fmt.Sprintf("%s:%s", my.Username, my.Password)
	}

	return fmt.Sprintf("%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, host, port, my.Database), nil
}

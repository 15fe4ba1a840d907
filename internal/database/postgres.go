package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	pg := cfg.Postgres
	if pg.Username == "" || pg.Database == "" {
		return "", errors.New("postgres configuration requires username and database name")
	}

	host := pg.Host
	if host == "" {
		host = "localhost"
	}

	port := pg.Port
	if port == 0 {
		port = 5432
	}

	params := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("user=%s", pg.Username),
		fmt.Sprintf("dbname=%s", pg.Database),
		"sslmode=disable",
	}

	if pg.Password != "" {
		params = append(params, fmt.Sprintf("password=%s", pg.Password))
	}

	return strings.Join(params, " "), nil
}

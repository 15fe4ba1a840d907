package app

import "github.com/peopledeskhq/peopledesk/internal/database"

// StoreConfig converts the database section into the database package representation.
func (c DatabaseConfig) StoreConfig() database.Config {
	return database.Config{
		Driver: c.Driver,
		Path:   c.Path,
		DSN:    c.DSN,
		Postgres: database.HostConfig{
			Host:     c.Postgres.Host,
			Port:     c.Postgres.Port,
			Database: c.Postgres.Database,
			Username: c.Postgres.Username,
			Password: c.Postgres.Password,
		},
		MySQL: database.HostConfig{
			Host:     c.MySQL.Host,
			Port:     c.MySQL.Port,
			Database: c.MySQL.Database,
			Username: c.MySQL.Username,
			Password: c.MySQL.Password,
		},
	}
}

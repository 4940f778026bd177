package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
)

type dialect struct {
	driver string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres, DriverSQLite, DriverMySQL:
		return dialect{driver: driver}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// rebind rewrites ? placeholders into $n for postgres.
func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) upsertUser() string {
	insert := "INSERT INTO users (telegram_id, username, first_name, last_name, last_active) VALUES (?, ?, ?, ?, ?)"
	if d.driver == DriverMySQL {
		return insert + " ON DUPLICATE KEY UPDATE username = VALUES(username), first_name = VALUES(first_name), " +
			"last_name = VALUES(last_name), last_active = VALUES(last_active)"
	}
	return d.rebind(insert + " ON CONFLICT (telegram_id) DO UPDATE SET username = excluded.username, " +
		"first_name = excluded.first_name, last_name = excluded.last_name, last_active = excluded.last_active")
}

func (d dialect) schema() []string {
	switch d.driver {
	case DriverPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
				telegram_id BIGINT PRIMARY KEY,
				username TEXT NOT NULL DEFAULT '',
				first_name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				last_active TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id BIGSERIAL PRIMARY KEY,
				telegram_id BIGINT NOT NULL,
				role VARCHAR(16) NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages (telegram_id, created_at)`,
		}
	case DriverMySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
				telegram_id BIGINT PRIMARY KEY,
				username VARCHAR(255) NOT NULL DEFAULT '',
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				last_active DATETIME(6) NOT NULL
			) DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS messages (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				telegram_id BIGINT NOT NULL,
				role VARCHAR(16) NOT NULL,
				content TEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				INDEX idx_messages_user_created (telegram_id, created_at)
			) DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
				telegram_id INTEGER PRIMARY KEY,
				username TEXT NOT NULL DEFAULT '',
				first_name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				last_active TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				telegram_id INTEGER NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages (telegram_id, created_at)`,
		}
	}
}

// Open connects to the configured database and checks the connection
func Open(cfg *config.DatabaseConfig, logger *logrus.Logger) (*SQLStorage, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		// A single connection keeps :memory: databases alive and serializes writes.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	logger.WithField("driver", cfg.Driver).Info("Database connected")
	return NewSQLStorage(db, cfg.Driver, logger)
}

func openDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
		db, err := sql.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", cfg.Driver, err)
		}
		return db, nil
	case DriverMySQL:
		mysqlCfg, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		// created_at is scanned into time.Time
		mysqlCfg.ParseTime = true
		connector, err := mysql.NewConnector(mysqlCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open mysql: %w", err)
		}
		return sql.OpenDB(connector), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

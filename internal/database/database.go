package database

import (
	"database/sql"
	"log"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/example/eshop/internal/models"
)

var db *gorm.DB

// Connect initializes the database connection and runs migrations.
func Connect(dsn, logLevel string) *gorm.DB {
	if db != nil {
		return db
	}

	conn, err := Open(dsn, logLevel)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := Migrate(conn); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	db = conn
	return db
}

// Open connects without migrating. postgres:// URLs go through the postgres
// driver (creating the database when missing); sqlite://path and file: DSNs
// use the pure-Go sqlite driver.
func Open(dsn, logLevel string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(parseLogLevel(logLevel)),
		TranslateError: true,
	}

	if isSQLite(dsn) {
		return gorm.Open(sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        strings.TrimPrefix(dsn, "sqlite://"),
		}, cfg)
	}

	if err := ensureDatabase(dsn); err != nil {
		return nil, err
	}

	conn, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}

	if err := conn.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Printf("warning: failed to ensure uuid-ossp extension: %v", err)
	}

	return conn, nil
}

// DB exposes the initialized gorm.DB instance.
func DB() *gorm.DB {
	return db
}

// Migrate creates or updates every table of the shop schema.
func Migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.User{},
		&models.Category{},
		&models.Filter{},
		&models.CategoryFilter{},
		&models.CategoryFilterValue{},
		&models.Item{},
		&models.ItemProperty{},
		&models.Basket{},
		&models.ItemBasket{},
		&models.Shop{},
		&models.Organization{},
		&models.CustomerData{},
		&models.Delivery{},
		&models.Order{},
		&models.OrderItem{},
		&models.Import{},
		&models.ImportItem{},
		&models.InventoryMovement{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	return nil
}

func isSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, "sqlite://") || strings.HasPrefix(dsn, "file:")
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	masterDSN := parsed.String()

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}

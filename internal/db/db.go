// Package db opens the relational database behind the gorm store.
package db

import (
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/suPer8Hu/codegen-ide/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DetectDialect picks the driver from the DSN shape. Anything that is not
// recognisably Postgres or SQLite is handed to the MySQL driver.
func DetectDialect(dsn string) Dialect {
	d := strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"),
		strings.HasPrefix(d, "host="):
		return Postgres
	case strings.HasPrefix(d, "sqlite:"), strings.HasPrefix(d, "file:"),
		strings.HasSuffix(d, ".db"), strings.HasSuffix(d, ".sqlite"),
		strings.Contains(d, ".db?"), d == ":memory:":
		return SQLite
	default:
		return MySQL
	}
}

func sqliteDSN(dsn string) string {
	d := strings.TrimPrefix(strings.TrimSpace(dsn), "sqlite:")
	if strings.Contains(d, "foreign_keys") {
		return d
	}
	sep := "?"
	if strings.Contains(d, "?") {
		sep = "&"
	}
	return d + sep + "_pragma=foreign_keys(1)"
}

func dialector(dsn string) gorm.Dialector {
	switch DetectDialect(dsn) {
	case Postgres:
		return postgres.Open(dsn)
	case SQLite:
		return sqlite.Open(sqliteDSN(dsn))
	default:
		return mysql.Open(dsn)
	}
}

// Connect opens the database and migrates the schema.
//
// mysql demo DSN:
// app:apppass@tcp(127.0.0.1:3306)/codegen_ide?charset=utf8mb4&parseTime=true&loc=Local
func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(dialector(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if DetectDialect(dsn) == SQLite {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// one writer; also keeps :memory: databases on a single connection
		sqlDB.SetMaxOpenConns(1)
	}
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Project{},
		&models.File{},
		&models.FileVersion{},
		&models.Message{},
		&models.Upload{},
		&models.Template{},
	)
}

package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/slidont/internal/models"
	applog "github.com/sujalbistaa/slidont/pkg/logger"
)

const (
	postgresPrefix = "postgres://"
	sqlitePrefix   = "sqlite://"

	sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
)

// Options controls how Init opens the database.
type Options struct {
	MaxOpenConns int
	Debug        bool // log SQL through gorm's logger
}

// Init opens a GORM connection for a postgres:// or sqlite:// URL.
func Init(ctx context.Context, dbURL string, opts Options) (*gorm.DB, error) {
	if dbURL == "" {
		dbURL = sqlitePrefix + "slidont.db"
	}

	var dialector gorm.Dialector
	isSQLite := false

	switch {
	case strings.HasPrefix(dbURL, postgresPrefix), strings.HasPrefix(dbURL, "postgresql://"):
		dialector = postgres.Open(dbURL)
		applog.Info(ctx, "Connecting to PostgreSQL database")
	case strings.HasPrefix(dbURL, sqlitePrefix):
		path := strings.TrimPrefix(dbURL, sqlitePrefix)
		dialector = sqlite.Open(sqliteDSN(path))
		isSQLite = true
		applog.Info(ctx, "Connecting to SQLite database", "path", path)
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL prefix %q: must start with 'postgres://' or 'sqlite://'", dbURL)
	}

	gormLogger := logger.Default.LogMode(logger.Silent)
	if opts.Debug {
		gormLogger = logger.Default.LogMode(logger.Info)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite {
		// SQLite has no row locks: one connection serialises every transaction.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns / 2)
	}

	applog.Info(ctx, "Database connection established")
	return gdb, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}

// IsSQLite reports whether db is backed by SQLite.
func IsSQLite(db *gorm.DB) bool {
	return db.Dialector.Name() == "sqlite"
}

// Migrate creates tables and the indexes the moderation queries depend on.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Event{}, &models.Question{}, &models.Buzz{}); err != nil {
		return fmt.Errorf("migrate items: %w", err)
	}
	for _, table := range models.LedgerTables {
		if err := db.Table(table).AutoMigrate(&models.LedgerEntry{}); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}

	// Index names are schema-global in both SQLite and PostgreSQL, so each
	// table gets its own prefix.
	var stmts []string
	for _, table := range []string{models.TableQuestions, models.TableBuzz} {
		stmts = append(stmts,
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_event_created ON %s(event_id, created_at)", table, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_event_votes ON %s(event_id, vote_count)", table, table),
		)
	}
	for _, table := range models.LedgerTables {
		stmts = append(stmts,
			fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_item_session ON %s(item_id, session_id)", table, table),
		)
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Ping checks that the underlying connection pool is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

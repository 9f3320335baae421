package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sujalbistaa/slidont/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	url := "sqlite://" + filepath.Join(t.TempDir(), "test.db")
	database, err := Init(context.Background(), url, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(database) })
	return database
}

func TestInit_InvalidURL(t *testing.T) {
	_, err := Init(context.Background(), "mysql://localhost/slidont", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid DATABASE_URL prefix")
}

func TestInit_SQLite(t *testing.T) {
	database := openTestDB(t)

	assert.True(t, IsSQLite(database))
	require.NoError(t, Ping(context.Background(), database))

	sqlDB, err := database.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, database.Raw("PRAGMA journal_mode;").Scan(&journalMode).Error)
	assert.Equal(t, "wal", journalMode)
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "a.db?"+sqlitePragmas, sqliteDSN("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&"+sqlitePragmas, sqliteDSN("file:a.db?mode=rwc"))
}

func TestMigrate_CreatesTables(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, Migrate(database))

	m := database.Migrator()
	for _, table := range append([]string{"events", models.TableQuestions, models.TableBuzz}, models.LedgerTables...) {
		assert.True(t, m.HasTable(table), "table %s", table)
	}
	assert.True(t, m.HasColumn(&models.Question{}, "hidden_by_presenter"))
	assert.False(t, m.HasColumn(&models.Buzz{}, "hidden_by_presenter"))
	assert.True(t, m.HasIndex(models.TableQuestions, "idx_questions_event_created"))
	assert.True(t, m.HasIndex(models.TableBuzz, "idx_buzz_event_votes"))
	assert.True(t, m.HasIndex(models.TableBuzzFlags, "idx_buzz_flags_item_session"))
}

func TestMigrate_Idempotent(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, Migrate(database))
	require.NoError(t, Migrate(database))
}

func TestMigrate_LedgerUniquePerItemSession(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, Migrate(database))

	entry := models.LedgerEntry{ItemID: "item-1", SessionID: "s-1", CreatedAt: 1}
	require.NoError(t, database.Table(models.TableQuestionVotes).Create(&entry).Error)

	dup := models.LedgerEntry{ItemID: "item-1", SessionID: "s-1", CreatedAt: 2}
	assert.Error(t, database.Table(models.TableQuestionVotes).Create(&dup).Error)

	// Same pair in another ledger is independent.
	other := models.LedgerEntry{ItemID: "item-1", SessionID: "s-1", CreatedAt: 3}
	assert.NoError(t, database.Table(models.TableQuestionFlags).Create(&other).Error)
}

func TestMigrate_EventSlugUnique(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, Migrate(database))

	require.NoError(t, database.Create(&models.Event{ID: "e1", Slug: "tokyo", Title: "T", PresenterSecret: "x", CreatedAt: 1}).Error)
	assert.Error(t, database.Create(&models.Event{ID: "e2", Slug: "tokyo", Title: "T", PresenterSecret: "y", CreatedAt: 2}).Error)
}

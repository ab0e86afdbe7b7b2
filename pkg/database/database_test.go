package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector(&Config{Driver: "oracle"})
	assert.Error(t, err)

	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialector(&Config{Driver: driver, FilePath: "x.db"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}
}

func TestNewSqliteMigrates(t *testing.T) {
	db, err := New(&Config{
		Driver:   "sqlite",
		FilePath: filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, AutoMigrate(db, &widget{}))
	require.NoError(t, db.Create(&widget{ID: 1, Name: "lathe"}).Error)

	var got widget
	require.NoError(t, db.First(&got, 1).Error)
	assert.Equal(t, "lathe", got.Name)
}

func TestParseGormLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, parseGormLevel("SILENT"))
	assert.Equal(t, logger.Info, parseGormLevel(" info "))
	assert.Equal(t, logger.Warn, parseGormLevel(""))
}

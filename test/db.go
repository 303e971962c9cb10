package test

import (
	"fmt"
	"path/filepath"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/celestiaorg/docconv/internal/db"
	"github.com/celestiaorg/docconv/internal/db/repos"
)

// NewFileBasedTestDB creates a migrated file-based SQLite database in dir.
func NewFileBasedTestDB(dir string) (*gorm.DB, error) {
	conn, err := db.New(db.Options{
		Driver:   db.DriverSQLite,
		Path:     filepath.Join(dir, "docconv_test.db"),
		LogLevel: logger.Silent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return conn, nil
}

// CleanupTestDB closes the database connection.
func CleanupTestDB(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err == nil && sqlDB != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			fmt.Printf("Error closing database connection: %v\n", closeErr)
		}
	}
}

// SetupTestDB gives the suite its own job store.
func SetupTestDB(suite *Suite) {
	conn, err := NewFileBasedTestDB(suite.Dir)
	suite.Require().NoError(err, "Failed to create file-based database")
	suite.DB = conn
	suite.JobRepo = repos.NewJobRepository(conn)

	oldCleanup := suite.cleanup
	suite.cleanup = func() {
		if oldCleanup != nil {
			oldCleanup()
		}
		CleanupTestDB(suite.DB)
	}
}

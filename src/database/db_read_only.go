package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sirupsen/logrus"

	"tradingcore/src/model"
)

// ReadOnlyDB is the read-only connection to the candle history replayed by backtests.
// The database user for this connection should have SELECT-only permissions.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB initializes the read-only database connection.
// It does not run any migrations. Without DATABASE_URL_READONLY it reuses MainDB.
func InitReadOnlyDB() error {
	config := GetConfig()
	if config.DatabaseURLReadOnly == "" {
		ReadOnlyDB = MainDB
		logrus.Info("[ReadOnlyDB] no dedicated URL, using MainDB")
		return nil
	}

	db, err := gorm.Open(postgres.Open(config.DatabaseURLReadOnly),
		&gorm.Config{
			PrepareStmt:    true,
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to connect to ReadOnlyDB: %w", err)
	}

	// ✅ Get low-level sql.DB from GORM
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}

	// ✅ REAL ping to the database
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	if err := CheckCandleHistory(db); err != nil {
		return err
	}

	ReadOnlyDB = db

	return nil
}

// CheckCandleHistory verifies both candle tables are reachable and logs their size.
func CheckCandleHistory(db *gorm.DB) error {
	tables := []interface{ TableName() string }{&model.OHLCVCrypto1m{}, &model.OHLCVCrypto1h{}}
	for _, table := range tables {
		var count int64
		if err := db.Model(table).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to access %s: %w", table.TableName(), err)
		}
		logrus.WithFields(map[string]interface{}{
			"table": table.TableName(),
			"count": count,
		}).Info("[ReadOnlyDB] candle history reachable")
	}
	return nil
}

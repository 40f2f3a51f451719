package infra

import (
	"fmt"

	"dutyfree/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Supported values of DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// NewDatabase opens a GORM connection for the configured driver, sizes the
// pool and brings the schema up to date. SQLite is meant for local runs and
// tests; row locking is only taken on PostgreSQL and MySQL.
func NewDatabase(driver, dsn string) (*gorm.DB, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one writer; in-memory databases also vanish with their last connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres, "":
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// RunMigrations creates or updates every table, then applies the statements
// AutoMigrate cannot express. Safe to run on every start.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.StockBatch{},
		&model.PurchaseReceipt{},
		&model.RegisterSession{},
		&model.Sale{},
		&model.SaleItem{},
		&model.SalePayment{},
		&model.Receipt{},
		&model.Counter{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL per dialect.
func applySchemaPatches(db *gorm.DB) error {
	if db.Dialector.Name() != DriverPostgres {
		return seedCounters(db)
	}
	patches := []string{
		// sale numbers come from a sequence so concurrent creates never collide
		`CREATE SEQUENCE IF NOT EXISTS sales_number_seq`,
		`SELECT setval('sales_number_seq', GREATEST((SELECT COALESCE(MAX(number), 0) FROM sales), 1),
		        (SELECT COUNT(*) > 0 FROM sales))`,
		// partial index for the receipt sweeper query
		`CREATE INDEX IF NOT EXISTS idx_receipts_pending_retry
		     ON receipts (next_retry_at)
		     WHERE status = 'pending' AND next_retry_at IS NOT NULL`,
		// FEFO scans by product
		`CREATE INDEX IF NOT EXISTS idx_stock_batches_fefo
		     ON stock_batches (product_id, expiry_date NULLS LAST, received_at, id)`,
	}
	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}

// seedCounters creates the sale number counter where there is no native
// sequence, starting after the highest number already issued.
func seedCounters(db *gorm.DB) error {
	var last int64
	if err := db.Model(&model.Sale{}).Select("COALESCE(MAX(number), 0)").Scan(&last).Error; err != nil {
		return fmt.Errorf("seed counters: %w", err)
	}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Counter{Name: model.CounterSales, Value: last}).Error
	if err != nil {
		return fmt.Errorf("seed counters: %w", err)
	}
	return nil
}

package database

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"brokerdesk/config"
	"brokerdesk/logger"
	"brokerdesk/models"
)

// DbInstance struct holds the database connection instance
type DbInstance struct {
	Db *gorm.DB
}

// Database is the global database instance
var Database DbInstance

// ConnectDb opens the configured database, applies pool settings and runs
// migrations.
func ConnectDb() error {
	cfg := config.AppConfig
	log := logger.GetLogger()

	logLevel := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		logLevel = gormlogger.Info
	}

	db, err := Open(cfg.DBDriver, DSN(cfg), logLevel)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "get database instance")
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := RunMigrations(db); err != nil {
		return err
	}

	log.Info("Database connected", zap.String("driver", cfg.DBDriver), zap.String("name", cfg.DBName))
	Database = DbInstance{Db: db}
	return nil
}

// DSN builds the connection string for the configured driver. For sqlite the
// database name is the file path.
func DSN(cfg *config.Config) string {
	switch cfg.DBDriver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	case "sqlite":
		return cfg.DBName
	default:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
	}
}

// Open connects with the named driver. SQL logs go through the zap logger.
func Open(driver, dsn string, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newSQLLogger(logger.GetLogger(), logLevel),
		TranslateError: true,
		// Member.firm is checked by the services and the consistency audit,
		// not by a foreign key.
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", driver)
	}
	return db, nil
}

func newSQLLogger(base *zap.Logger, logLevel gormlogger.LogLevel) gormlogger.Interface {
	return gormlogger.New(zap.NewStdLog(base.Named("gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})
}

// RunMigrations creates or updates the tables for every model.
func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Firm{},
		&models.FirmMember{},
		&models.Member{},
		&models.File{},
		&models.Interaction{},
	)
	if err != nil {
		return errors.Wrap(err, "migrate")
	}
	return nil
}

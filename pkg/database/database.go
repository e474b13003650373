package database

import (
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/pkg/logger"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialector picks the gorm driver for cfg.Driver. Postgres is the production store;
// mysql is kept for self-hosted installs.
func Dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "require"
		}
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
			cfg.Host,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.Port,
			sslmode,
		)
		return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func logLevel(s string) gormlogger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// Open connects with the settings every environment shares.
func Open(dialector gorm.Dialector, level gormlogger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
}

func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := Open(dialector, logLevel(cfg.LogLevel))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Supabase's pooler caps connections per project.
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Log.Info("Database connection established", zap.String("driver", cfg.Driver))

	if migrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		logger.Log.Info("Database migration completed")
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return err
	}
	return seedCategories(db)
}

func seedCategories(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.ArticleCategory{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	defaults := []model.ArticleCategory{
		{Name: "Exam News", Slug: "exam-news", Description: "Notifications, dates and pattern changes"},
		{Name: "Preparation Strategy", Slug: "preparation-strategy", Description: "Study plans and revision advice"},
		{Name: "Subject Guides", Slug: "subject-guides", Description: "Chapter and topic explainers"},
	}
	for i := range defaults {
		if err := db.Create(&defaults[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

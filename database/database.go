// database.go - Handles database connection and setup

package database

import (
	"context"
	"errors"
	"fmt"

	"cima-backend/auth"
	"cima-backend/logging"
	"cima-backend/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AdminSeed describes the bootstrap admin account.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

func Connect(dbPath string) (*gorm.DB, error) { // Connect opens the database and runs migrations
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1) // SQLite allows a single writer; serialize instead of failing with SQLITE_BUSY
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the users and reports tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Report{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks that the underlying connection is alive.
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

// EnsureAdmin creates a verified admin account if no admin exists yet.
func EnsureAdmin(ctx context.Context, db *gorm.DB, seed AdminSeed) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(seed.Password)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:        seed.Name,
		Email:       seed.Email,
		Password:    hash,
		Role:        models.RoleAdmin,
		IsVerified:  true,
		Preferences: models.DefaultPreferences(),
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// An existing member already owns the address; promote it instead.
			return db.WithContext(ctx).Model(&models.User{}).Where("email = ?", seed.Email).Update("role", models.RoleAdmin).Error
		}
		return err
	}
	logging.Info().Str("email", seed.Email).Msg("default admin created")
	return nil
}

// Package setting provides CRUD operations for managing application settings.
package setting

import (
	"errors"

	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/db/models"
)

const (
	nameQueryPattern = "name = ?"
)

var (
	// ErrSettingNotFound is returned when a setting is not found.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrSettingNameEmpty is returned when attempting to create/update a setting with an empty name.
	ErrSettingNameEmpty = errors.New("setting name cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a setting by its name.
func Get(db *gorm.DB, name string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	var setting models.Setting

	result := db.Where(nameQueryPattern, name).First(&setting)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}

		return nil, result.Error
	}

	return &setting, nil
}

// Set creates or updates a setting by name (upsert operation).
func Set(db *gorm.DB, name string, value []byte) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	var setting models.Setting

	result := db.Where(nameQueryPattern, name).First(&setting)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		setting = models.Setting{Name: name, Value: value}

		if result = db.Create(&setting); result.Error != nil {
			return nil, result.Error
		}

		return &setting, nil
	}

	if result.Error != nil {
		return nil, result.Error
	}

	setting.Value = value

	if result = db.Save(&setting); result.Error != nil {
		return nil, result.Error
	}

	return &setting, nil
}

// Delete deletes a setting by name.
func Delete(db *gorm.DB, name string) error {
	if db == nil {
		return ErrDBNil
	}

	if name == "" {
		return ErrSettingNameEmpty
	}

	result := db.Where(nameQueryPattern, name).Delete(&models.Setting{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}

	return nil
}

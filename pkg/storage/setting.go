package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Setting is a single key value pair kept by the panel, such as the api key
// or the saved presets.
type Setting struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Value     string
}

// GetSetting returns the value stored under id or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, id string) (string, error) {
	var v Setting
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("storage: setting %s: %w", id, ErrNotFound)
		}
		return "", fmt.Errorf("storage: couldn't get setting %s: %w", id, err)
	}
	return v.Value, nil
}

// SetSetting creates or replaces the value stored under id.
func (s *Store) SetSetting(ctx context.Context, id, value string) error {
	v := Setting{ID: id, Value: value}
	if err := s.db.WithContext(ctx).Save(&v).Error; err != nil {
		return fmt.Errorf("storage: couldn't set setting %s: %w", id, err)
	}
	return nil
}

// DeleteSetting removes id. Missing settings are not an error.
func (s *Store) DeleteSetting(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&Setting{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("storage: couldn't delete setting %s: %w", id, err)
	}
	return nil
}

// Settings returns every stored setting ordered by id.
func (s *Store) Settings(ctx context.Context) ([]Setting, error) {
	vs := []Setting{}
	if err := s.db.WithContext(ctx).Order("id").Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: couldn't list settings: %w", err)
	}
	return vs, nil
}

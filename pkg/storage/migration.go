package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/oklog/ulid/v2"
)

// Migration records the last data migration applied to the database.
type Migration struct {
	ID        string `gorm:"primarykey"`
	CreatedAt int64
	UpdatedAt int64

	Version int `gorm:"not null;default:0"`
}

type migrationStep struct {
	name string
	run  func(ctx context.Context, s *Store) error
}

// migrations are applied in order, version n runs migrations[n-1].
var migrations = []migrationStep{
	{
		name: "normalize saved presets",
		run: func(ctx context.Context, s *Store) error {
			presets, err := s.Presets(ctx)
			if err != nil {
				return err
			}
			return s.SetPresets(ctx, presets)
		},
	},
}

// dataMigrate applies pending data migrations. A fresh database starts at
// the latest version.
func (s *Store) dataMigrate(ctx context.Context, fresh bool) error {
	last := len(migrations)
	db := s.db.WithContext(ctx)

	if !db.Migrator().HasTable(&Migration{}) {
		if err := db.Migrator().CreateTable(&Migration{}); err != nil {
			return fmt.Errorf("storage: couldn't create table migrations: %w", err)
		}
		var version int
		if fresh {
			version = last
		}
		if err := db.Save(&Migration{ID: ulid.Make().String(), Version: version}).Error; err != nil {
			return fmt.Errorf("storage: couldn't save migration version: %w", err)
		}
		if fresh {
			return nil
		}
	}

	var migration Migration
	if err := db.First(&migration).Error; err != nil {
		return fmt.Errorf("storage: couldn't get migration version: %w", err)
	}
	for v := migration.Version + 1; v <= last; v++ {
		step := migrations[v-1]
		log.Printf("storage: migration %d: %s\n", v, step.name)
		if err := step.run(ctx, s); err != nil {
			return fmt.Errorf("storage: migration %d: %w", v, err)
		}
		migration.Version = v
		if err := db.Save(&migration).Error; err != nil {
			return fmt.Errorf("storage: couldn't save migration version: %w", err)
		}
	}
	return nil
}

// Version returns the last applied data migration.
func (s *Store) Version(ctx context.Context) (int, error) {
	var migration Migration
	if err := s.db.WithContext(ctx).First(&migration).Error; err != nil {
		return 0, fmt.Errorf("storage: couldn't get migration version: %w", err)
	}
	return migration.Version, nil
}

package setting

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/igolaizola/sunostudio/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	APIKey string
	Unset  bool
}

// Run stores or removes the api key. Without a key to set or remove it prints
// the stored settings with the api key masked.
func Run(ctx context.Context, w io.Writer, cfg *Config) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("setting: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("setting: couldn't start orm store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("setting: couldn't migrate orm store: %w", err)
	}

	switch {
	case cfg.Unset && cfg.APIKey != "":
		return fmt.Errorf("setting: api key and unset can't be used together")
	case cfg.Unset:
		if err := store.SetAPIKey(ctx, ""); err != nil {
			return fmt.Errorf("setting: couldn't remove api key: %w", err)
		}
		return nil
	case cfg.APIKey != "":
		if err := store.SetAPIKey(ctx, strings.TrimSpace(cfg.APIKey)); err != nil {
			return fmt.Errorf("setting: couldn't save api key: %w", err)
		}
		return nil
	}

	settings, err := store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("setting: couldn't list settings: %w", err)
	}
	for _, s := range settings {
		v := s.Value
		if s.ID == storage.KeyAPIKey {
			v = Mask(v)
		}
		fmt.Fprintf(w, "%s\t%s\n", s.ID, v)
	}
	return nil
}

// Mask hides all but the last four characters of a secret.
func Mask(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}

package preset

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/igolaizola/sunostudio/pkg/storage"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Title  string
	Prompt string
	Index  int
	File   string
}

type Action string

const (
	ActionList   Action = "list"
	ActionAdd    Action = "add"
	ActionDelete Action = "delete"
	ActionImport Action = "import"
	ActionExport Action = "export"
)

// Run executes a preset action against the stored presets.
func Run(ctx context.Context, w io.Writer, action Action, cfg *Config) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("preset: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("preset: couldn't start orm store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("preset: couldn't migrate orm store: %w", err)
	}

	switch action {
	case ActionList, "":
		presets, err := store.Presets(ctx)
		if err != nil {
			return fmt.Errorf("preset: %w", err)
		}
		for i, p := range presets {
			fmt.Fprintf(w, "%d\t%s\t%s\n", i, p.Title, p.Prompt)
		}
	case ActionAdd:
		if _, err := store.AddPreset(ctx, cfg.Title, cfg.Prompt); err != nil {
			return fmt.Errorf("preset: %w", err)
		}
	case ActionDelete:
		if _, err := store.DeletePreset(ctx, cfg.Index); err != nil {
			return fmt.Errorf("preset: %w", err)
		}
	case ActionImport:
		presets, err := read(cfg.File)
		if err != nil {
			return err
		}
		current, err := store.Presets(ctx)
		if err != nil {
			return fmt.Errorf("preset: %w", err)
		}
		if err := store.SetPresets(ctx, append(current, presets...)); err != nil {
			return fmt.Errorf("preset: %w", err)
		}
	case ActionExport:
		presets, err := store.Presets(ctx)
		if err != nil {
			return fmt.Errorf("preset: %w", err)
		}
		out := w
		if cfg.File != "" {
			f, err := os.Create(cfg.File)
			if err != nil {
				return fmt.Errorf("preset: couldn't create %s: %w", cfg.File, err)
			}
			defer f.Close()
			out = f
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(presets); err != nil {
			return fmt.Errorf("preset: couldn't encode presets: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("preset: couldn't encode presets: %w", err)
		}
	default:
		return fmt.Errorf("preset: unknown action %q", action)
	}
	return nil
}

func read(path string) ([]storage.Preset, error) {
	if path == "" {
		return nil, fmt.Errorf("preset: file is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preset: couldn't read %s: %w", path, err)
	}
	var presets []storage.Preset
	if err := yaml.Unmarshal(b, &presets); err != nil {
		return nil, fmt.Errorf("preset: couldn't parse %s: %w", path, err)
	}
	return presets, nil
}

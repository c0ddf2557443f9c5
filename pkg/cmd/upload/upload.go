package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/igolaizola/sunostudio"
	"github.com/igolaizola/sunostudio/pkg/storage"
)

type Config struct {
	Debug          bool
	DBType         string
	DBConn         string
	Proxy          string
	BaseURL        string
	Wait           time.Duration
	UploadWait     time.Duration
	UploadAttempts int

	Input string
}

// Run uploads an audio file and prints the resulting clip task.
func Run(ctx context.Context, w io.Writer, cfg *Config) error {
	if cfg.Input == "" {
		return fmt.Errorf("upload: input file is required")
	}
	f, err := os.Open(cfg.Input)
	if err != nil {
		return fmt.Errorf("upload: couldn't open %s: %w", cfg.Input, err)
	}
	defer f.Close()

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("upload: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("upload: couldn't start orm store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("upload: couldn't migrate orm store: %w", err)
	}
	key, err := store.APIKey(ctx)
	if err != nil {
		return fmt.Errorf("upload: couldn't load api key: %w", err)
	}

	studio, err := sunostudio.New(&sunostudio.Config{
		Debug:          cfg.Debug,
		BaseURL:        cfg.BaseURL,
		Proxy:          cfg.Proxy,
		APIKey:         key,
		Wait:           cfg.Wait,
		UploadWait:     cfg.UploadWait,
		UploadAttempts: cfg.UploadAttempts,
	})
	if err != nil {
		return fmt.Errorf("upload: couldn't create studio: %w", err)
	}

	name := filepath.Base(cfg.Input)
	task, err := studio.Upload(ctx, name, f, mime.TypeByExtension(filepath.Ext(name)))
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(task); err != nil {
		return fmt.Errorf("upload: couldn't print task: %w", err)
	}
	return nil
}

package create

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/igolaizola/sunostudio"
	"github.com/igolaizola/sunostudio/pkg/filestore"
	"github.com/igolaizola/sunostudio/pkg/library"
	"github.com/igolaizola/sunostudio/pkg/storage"
	"github.com/igolaizola/sunostudio/pkg/suno"
	"github.com/igolaizola/sunostudio/pkg/timecode"
)

type Config struct {
	Debug        bool
	DBType       string
	DBConn       string
	FSType       string
	FSConn       string
	Proxy        string
	BaseURL      string
	Wait         time.Duration
	PollInterval time.Duration
	Timeout      time.Duration

	Mode         string
	Model        string
	Title        string
	Tags         string
	Prompt       string
	Description  string
	Instrumental bool
	Reference    string
	ContinueAt   string
	Preset       int
	Format       string
}

// Run submits a creation request, waits until the task settles and prints
// it. When a file storage is configured the resulting audio is archived.
func Run(ctx context.Context, w io.Writer, cfg *Config) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("create: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("create: couldn't start orm store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("create: couldn't migrate orm store: %w", err)
	}

	var fs *filestore.Store
	if cfg.FSType != "" {
		fs, err = filestore.New(cfg.FSType, cfg.FSConn, cfg.Debug)
		if err != nil {
			return fmt.Errorf("create: couldn't create file storage: %w", err)
		}
	}

	tags := cfg.Tags
	if cfg.Preset >= 0 {
		presets, err := store.Presets(ctx)
		if err != nil {
			return fmt.Errorf("create: couldn't load presets: %w", err)
		}
		if cfg.Preset >= len(presets) {
			return fmt.Errorf("create: preset %d: %w", cfg.Preset, storage.ErrNotFound)
		}
		tags = presets[cfg.Preset].Apply(tags)
	}

	key, err := store.APIKey(ctx)
	if err != nil {
		return fmt.Errorf("create: couldn't load api key: %w", err)
	}
	studio, err := sunostudio.New(&sunostudio.Config{
		Debug:        cfg.Debug,
		BaseURL:      cfg.BaseURL,
		Proxy:        cfg.Proxy,
		APIKey:       key,
		Wait:         cfg.Wait,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("create: couldn't create studio: %w", err)
	}

	in := &suno.Intent{
		Mode:            suno.Mode(cfg.Mode),
		Model:           suno.Model(cfg.Model),
		Title:           cfg.Title,
		Tags:            tags,
		Prompt:          cfg.Prompt,
		Description:     cfg.Description,
		Instrumental:    cfg.Instrumental,
		ReferenceClipID: cfg.Reference,
	}
	if cfg.ContinueAt != "" {
		in.ContinueAt = float64(timecode.Parse(cfg.ContinueAt))
	}
	task, err := studio.Submit(ctx, in)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	log.Printf("create: submitted task %s\n", task.ID)

	task, err = wait(ctx, studio, task.ID, cfg.PollInterval, cfg.Timeout)
	if err != nil {
		return err
	}
	if task.Status == library.StatusFailed {
		return fmt.Errorf("create: task %s failed: %s", task.ID, task.FailReason)
	}

	if fs != nil {
		format := filestore.Format(cfg.Format)
		if format == "" {
			format = filestore.FormatMP3
		}
		name, err := studio.Archive(ctx, fs, task.ID, format)
		if err != nil {
			return fmt.Errorf("create: %w", err)
		}
		log.Printf("create: archived %s as %s\n", task.ID, name)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(task); err != nil {
		return fmt.Errorf("create: couldn't print task: %w", err)
	}
	return nil
}

func wait(ctx context.Context, studio *sunostudio.Studio, id string, interval, timeout time.Duration) (library.Task, error) {
	if interval <= 0 {
		interval = library.DefaultInterval
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return library.Task{}, fmt.Errorf("create: task %s didn't settle: %w", id, ctx.Err())
		case <-ticker.C:
		}
		studio.Poller.Sweep(ctx)
		studio.Poller.Wait()
		task, ok := studio.Tasks.Get(id)
		if !ok {
			return library.Task{}, fmt.Errorf("create: %w: %s", sunostudio.ErrTaskNotFound, id)
		}
		if task.Status.Settled() {
			return task, nil
		}
	}
}

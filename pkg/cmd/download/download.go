package download

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/igolaizola/sunostudio"
	"github.com/igolaizola/sunostudio/pkg/filestore"
	"github.com/igolaizola/sunostudio/pkg/storage"
	"github.com/igolaizola/sunostudio/pkg/suno"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Debug       bool
	DBType      string
	DBConn      string
	FSType      string
	FSConn      string
	Proxy       string
	BaseURL     string
	Wait        time.Duration
	Timeout     time.Duration
	Concurrency int
	Format      string
}

// Run archives the audio of the given clips into the file storage and prints
// the stored file names. Failed clips are logged and reported at the end.
func Run(ctx context.Context, w io.Writer, cfg *Config, clipIDs []string) error {
	log.Printf("download: started\n")
	defer log.Printf("download: ended\n")

	if len(clipIDs) == 0 {
		return fmt.Errorf("download: no clip ids given")
	}
	format := filestore.Format(cfg.Format)
	if format == "" {
		format = filestore.FormatMP3
	}
	if format != filestore.FormatMP3 && format != filestore.FormatWAV {
		return fmt.Errorf("download: unknown format %q", format)
	}
	if cfg.FSType == "" {
		return fmt.Errorf("download: file storage type is required")
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("download: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("download: couldn't start orm store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("download: couldn't migrate orm store: %w", err)
	}
	key, err := store.APIKey(ctx)
	if err != nil {
		return fmt.Errorf("download: couldn't load api key: %w", err)
	}
	if key == "" {
		return fmt.Errorf("download: %w", suno.ErrUnauthenticated)
	}

	fs, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("download: couldn't create file storage: %w", err)
	}
	studio, err := sunostudio.New(&sunostudio.Config{
		Debug:   cfg.Debug,
		BaseURL: cfg.BaseURL,
		Proxy:   cfg.Proxy,
		APIKey:  key,
		Wait:    cfg.Wait,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("download: couldn't create studio: %w", err)
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	names := make([]string, len(clipIDs))
	var lck sync.Mutex
	var failed int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range clipIDs {
		i, id := i, id
		g.Go(func() error {
			name, err := studio.Archive(gctx, fs, id, format)
			if err != nil {
				log.Printf("download: couldn't archive %s: %v\n", id, err)
				lck.Lock()
				failed++
				lck.Unlock()
				return nil
			}
			names[i] = name
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	for _, name := range names {
		if name != "" {
			fmt.Fprintln(w, name)
		}
	}
	if failed > 0 {
		return fmt.Errorf("download: %d of %d clips failed", failed, len(clipIDs))
	}
	return nil
}

package serve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/igolaizola/sunostudio"
	"github.com/igolaizola/sunostudio/pkg/filestore"
	"github.com/igolaizola/sunostudio/pkg/ngrok"
	"github.com/igolaizola/sunostudio/pkg/storage"
	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"
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

	Addr        string
	Open        bool
	Ngrok       bool
	Credentials map[string]string
	Volumes     map[string]string
}

// Serve starts the control panel service.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("serve: server started")
	defer log.Println("serve: server ended")

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("serve: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("serve: couldn't start orm store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("serve: couldn't migrate orm store: %w", err)
	}

	var fs *filestore.Store
	if cfg.FSType != "" {
		fs, err = filestore.New(cfg.FSType, cfg.FSConn, cfg.Debug)
		if err != nil {
			return fmt.Errorf("serve: couldn't create file storage: %w", err)
		}
	}

	key, err := store.APIKey(ctx)
	if err != nil {
		return fmt.Errorf("serve: couldn't load api key: %w", err)
	}
	if key == "" {
		log.Println("serve: no api key stored, set one from the panel")
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
		return fmt.Errorf("serve: %w", err)
	}

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("serve: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("serve: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: newRouter(studio, store, fs, cfg),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("Starting server on %s", note)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return studio.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("serve: couldn't shutdown server: %v\n", err)
		}
		return nil
	})
	if cfg.Ngrok {
		public, cancel, err := ngrok.Run(gctx, strconv.Itoa(port))
		if err != nil {
			log.Printf("serve: couldn't start tunnel: %v\n", err)
		} else {
			defer cancel()
			log.Printf("serve: public url %s\n", public)
		}
	}
	if cfg.Open {
		openHost := host
		if openHost == "" || openHost == "0.0.0.0" {
			openHost = "localhost"
		}
		if err := browser.OpenURL(fmt.Sprintf("http://%s:%d", openHost, port)); err != nil {
			log.Printf("serve: couldn't open browser: %v\n", err)
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igolaizola/sunostudio/pkg/storage"
	"github.com/igolaizola/sunostudio/pkg/suno"
)

func TestRun(t *testing.T) {
	var base string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case suno.EndpointWav + "/c1":
			_, _ = w.Write([]byte(`{"url":"` + base + `/files/c1.wav"}`))
		case suno.EndpointWav + "/c2":
			_, _ = w.Write([]byte(`{}`))
		case "/files/c1.wav":
			_, _ = w.Write([]byte("RIFF"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	base = srv.URL

	dir := t.TempDir()
	out := filepath.Join(dir, "audio")
	cfg := &Config{
		DBType:      "sqlite",
		DBConn:      filepath.Join(dir, "test.db"),
		FSType:      "local",
		FSConn:      out,
		BaseURL:     srv.URL,
		Concurrency: 2,
		Format:      "wav",
	}
	ctx := context.Background()

	var buf bytes.Buffer
	if err := Run(ctx, &buf, cfg, []string{"c1"}); !errors.Is(err, suno.ErrUnauthenticated) {
		t.Fatalf("Run() without api key err = %v; want %v", err, suno.ErrUnauthenticated)
	}
	if _, err := os.Stat(filepath.Join(out, "c1.wav")); !os.IsNotExist(err) {
		t.Fatalf("c1.wav stored without api key: %v", err)
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.SetAPIKey(ctx, "sk"); err != nil {
		t.Fatal(err)
	}

	if err := Run(ctx, &buf, cfg, []string{"c1"}); err != nil {
		t.Fatalf("Run() err = %v; want nil", err)
	}
	if got := buf.String(); got != "c1.wav\n" {
		t.Fatalf("Run() printed %q; want %q", got, "c1.wav\n")
	}
	b, err := os.ReadFile(filepath.Join(out, "c1.wav"))
	if err != nil || string(b) != "RIFF" {
		t.Fatalf("stored file = %q, %v", b, err)
	}

	buf.Reset()
	err = Run(ctx, &buf, cfg, []string{"c1", "c2"})
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("Run() err = %v; want 1 of 2 failed", err)
	}
	if got := buf.String(); got != "c1.wav\n" {
		t.Fatalf("Run() printed %q; want %q", got, "c1.wav\n")
	}
}

func TestRunInvalid(t *testing.T) {
	ctx := context.Background()
	if err := Run(ctx, nil, &Config{FSType: "local"}, nil); err == nil {
		t.Fatal("Run() without ids succeeded; want error")
	}
	if err := Run(ctx, nil, &Config{FSType: "local", Format: "flac"}, []string{"c1"}); err == nil {
		t.Fatal("Run() with flac succeeded; want error")
	}
	if err := Run(ctx, nil, &Config{}, []string{"c1"}); err == nil {
		t.Fatal("Run() without file storage succeeded; want error")
	}
}

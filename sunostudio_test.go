package sunostudio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/igolaizola/sunostudio/pkg/filestore"
	"github.com/igolaizola/sunostudio/pkg/library"
	"github.com/igolaizola/sunostudio/pkg/reference"
	"github.com/igolaizola/sunostudio/pkg/suno"
)

func newTestStudio(t *testing.T, h http.HandlerFunc) (*Studio, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := New(&Config{BaseURL: srv.URL, APIKey: "key"})
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}
	return s, srv.URL
}

func TestSubmitUsesReference(t *testing.T) {
	var body map[string]any
	s, _ := newTestStudio(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		_, _ = w.Write([]byte(`{"task_id":"t2"}`))
	})
	s.Reference.Select(reference.Clip{ID: "c1", Duration: 125})
	s.Reference.UpdateContinueAt(42)

	task, err := s.Submit(context.Background(), &suno.Intent{Mode: suno.ModeExtend, Prompt: "more"})
	if err != nil {
		t.Fatalf("Submit() err = %v; want nil", err)
	}
	if task.ID != "t2" || task.ReferenceClipID != "c1" || !task.IsExtend || task.Kind != library.KindUpload {
		t.Fatalf("Submit() = %+v", task)
	}
	if body["continue_clip_id"] != "c1" || body["continue_at"] != float64(42) {
		t.Fatalf("request body = %v", body)
	}
	if _, ok := s.Tasks.Get("t2"); !ok {
		t.Fatalf("task t2 not recorded")
	}
}

func TestSubmitContinuesFromDuration(t *testing.T) {
	var body map[string]any
	s, _ := newTestStudio(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		_, _ = w.Write([]byte(`{"task_id":"t3"}`))
	})
	s.Reference.Select(reference.Clip{ID: "c1", Duration: 125})

	if _, err := s.Submit(context.Background(), &suno.Intent{Mode: suno.ModeExtend, Prompt: "more"}); err != nil {
		t.Fatalf("Submit() err = %v; want nil", err)
	}
	if body["continue_clip_id"] != "c1" || body["continue_at"] != float64(125) {
		t.Fatalf("request body = %v", body)
	}
}

func TestSubmitValidation(t *testing.T) {
	s, _ := newTestStudio(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	_, err := s.Submit(context.Background(), &suno.Intent{Mode: suno.ModeCover, Tags: "jazz"})
	var verr *suno.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() err = %v; want ValidationError", err)
	}
	if n := len(s.Tasks.List()); n != 0 {
		t.Fatalf("tasks = %d; want 0", n)
	}
}

func TestSelectTask(t *testing.T) {
	s, _ := newTestStudio(t, func(w http.ResponseWriter, r *http.Request) {})
	now := time.Now()
	_ = s.Tasks.Add(library.Task{ID: "t1", Status: library.StatusProcessing, CreatedAt: now})
	_ = s.Tasks.Add(library.Task{ID: "t2", ClipID: "c1", Status: library.StatusSuccess, Title: "Song", Duration: "2:05", CreatedAt: now})

	if _, _, err := s.SelectTask("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("SelectTask(nope) err = %v; want %v", err, ErrTaskNotFound)
	}
	if _, _, err := s.SelectTask("t1"); !errors.Is(err, ErrTaskNotReady) {
		t.Fatalf("SelectTask(t1) err = %v; want %v", err, ErrTaskNotReady)
	}
	clip, switched, err := s.SelectTask("t2")
	if err != nil {
		t.Fatalf("SelectTask(t2) err = %v; want nil", err)
	}
	if clip.ID != "c1" || clip.Duration != 125 || !switched {
		t.Fatalf("SelectTask(t2) = %+v, %v", clip, switched)
	}
	if got := s.Reference.ContinueText(); got != "2:05" {
		t.Fatalf("ContinueText() = %q; want %q", got, "2:05")
	}
}

func TestUploadSelectsReference(t *testing.T) {
	var storage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case suno.EndpointUpload:
			_, _ = w.Write([]byte(`{"id":"u1","url":"` + storage + `"}`))
		case suno.EndpointUpload + "/u1":
			_, _ = w.Write([]byte(`{"status":"complete"}`))
		case suno.EndpointUpload + "/u1/initialize-clip":
			_, _ = w.Write([]byte(`{"clip_id":"c7"}`))
		case suno.EndpointFeed + "/c7":
			_, _ = w.Write([]byte(`[{"id":"c7","title":"Take","audio_url":"https://x/c7.mp3","metadata":{"prompt":"words"}}]`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()
	storage = srv.URL + "/storage"
	s, err := New(&Config{
		BaseURL:        srv.URL,
		APIKey:         "key",
		UploadWait:     time.Millisecond,
		UploadAttempts: 3,
	})
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}

	s.Reference.SetMode(reference.ModeCover)
	task, err := s.Upload(context.Background(), "take.mp3", bytes.NewReader([]byte("audio")), "audio/mpeg")
	if err != nil {
		t.Fatalf("Upload() err = %v; want nil", err)
	}
	if task.ID != "c7" || task.Status != library.StatusSuccess || task.Lyrics != "words" {
		t.Fatalf("Upload() = %+v", task)
	}
	ref, ok := s.Reference.Current()
	if !ok || ref.ID != "c7" || ref.Duration != 0 || ref.URL != "https://x/c7.mp3" {
		t.Fatalf("Current() = %+v, %v", ref, ok)
	}
	if got := s.Reference.Mode(); got != reference.ModeExtend {
		t.Fatalf("Mode() = %q; want %q after upload from cover", got, reference.ModeExtend)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	if err := Download(context.Background(), srv.Client(), srv.URL+"/a.mp3", &buf); err != nil {
		t.Fatalf("Download() err = %v; want nil", err)
	}
	if buf.String() != "data" {
		t.Fatalf("Download() = %q; want %q", buf.String(), "data")
	}
	if err := Download(context.Background(), srv.Client(), srv.URL+"/missing", &buf); err == nil {
		t.Fatalf("Download() err = nil; want error")
	}
}

func TestArchive(t *testing.T) {
	var base string
	var downloads int
	s, u := newTestStudio(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case suno.EndpointWav + "/c1":
			_, _ = w.Write([]byte(`{"url":"` + base + `/files/c1.wav"}`))
		case suno.EndpointWav + "/c2":
			_, _ = w.Write([]byte(`{}`))
		case "/files/c1.wav":
			downloads++
			_, _ = w.Write([]byte("RIFF"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	base = u
	_ = s.Tasks.Add(library.Task{ID: "t1", ClipID: "c1", Status: library.StatusSuccess})
	fs, err := filestore.New("local", t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		name, err := s.Archive(ctx, fs, "t1", filestore.FormatWAV)
		if err != nil {
			t.Fatalf("Archive() err = %v; want nil", err)
		}
		if name != "c1.wav" {
			t.Fatalf("Archive() = %q; want %q", name, "c1.wav")
		}
	}
	if downloads != 1 {
		t.Fatalf("downloads = %d; want 1", downloads)
	}
	var buf bytes.Buffer
	if err := fs.GetAudio(ctx, &buf, "c1", filestore.FormatWAV); err != nil || buf.String() != "RIFF" {
		t.Fatalf("GetAudio() = %q, %v", buf.String(), err)
	}

	if _, err := s.Archive(ctx, fs, "c2", filestore.FormatWAV); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Archive(c2) err = %v; want %v", err, ErrUnavailable)
	}
}

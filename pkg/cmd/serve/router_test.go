package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/igolaizola/sunostudio"
	"github.com/igolaizola/sunostudio/pkg/library"
	"github.com/igolaizola/sunostudio/pkg/storage"
	"github.com/igolaizola/sunostudio/pkg/suno"
)

type testEnv struct {
	studio *sunostudio.Studio
	store  *storage.Store
	srv    *httptest.Server
}

func newTestEnv(t *testing.T, remote http.HandlerFunc, cfg *Config) *testEnv {
	t.Helper()
	ctx := context.Background()
	api := httptest.NewServer(remote)
	t.Cleanup(api.Close)

	store, err := storage.New("sqlite", filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	studio, err := sunostudio.New(&sunostudio.Config{
		BaseURL:        api.URL,
		UploadWait:     time.Millisecond,
		UploadAttempts: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	srv := httptest.NewServer(newRouter(studio, store, nil, cfg))
	t.Cleanup(srv.Close)
	return &testEnv{studio: studio, store: store, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if out != nil && len(b) > 0 {
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("couldn't decode %s %s response %q: %v", method, path, b, err)
		}
	}
	return resp.StatusCode
}

func TestKey(t *testing.T) {
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {}, nil)

	var got map[string]bool
	if code := e.do(t, http.MethodGet, "/api/key", "", &got); code != http.StatusOK || got["configured"] {
		t.Fatalf("GET /api/key = %d %v; want 200 false", code, got)
	}
	if code := e.do(t, http.MethodPut, "/api/key", `{}`, nil); code != http.StatusBadRequest {
		t.Fatalf("PUT /api/key {} = %d; want 400", code)
	}
	if code := e.do(t, http.MethodPut, "/api/key", `{"api_key":"sk-1"}`, nil); code != http.StatusNoContent {
		t.Fatalf("PUT /api/key = %d; want 204", code)
	}
	if code := e.do(t, http.MethodGet, "/api/key", "", &got); code != http.StatusOK || !got["configured"] {
		t.Fatalf("GET /api/key = %d %v; want 200 true", code, got)
	}
	if key, _ := e.store.APIKey(context.Background()); key != "sk-1" {
		t.Fatalf("stored key = %q; want %q", key, "sk-1")
	}
	if key := e.studio.Client.Credential().Key(); key != "sk-1" {
		t.Fatalf("credential = %q; want %q", key, "sk-1")
	}
}

func TestSubmit(t *testing.T) {
	var fail bool
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("upstream down"))
			return
		}
		_, _ = w.Write([]byte(`{"data":"t1"}`))
	}, nil)

	body := `{"mode":"custom","tags":"rock","prompt":"hello"}`
	if code := e.do(t, http.MethodPost, "/api/tasks", body, nil); code != http.StatusUnauthorized {
		t.Fatalf("POST /api/tasks without key = %d; want 401", code)
	}
	e.studio.SetAPIKey("sk")

	if code := e.do(t, http.MethodPost, "/api/tasks", `{"mode":"custom","prompt":"hello"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("POST /api/tasks without style = %d; want 400", code)
	}
	var task library.Task
	if code := e.do(t, http.MethodPost, "/api/tasks", body, &task); code != http.StatusCreated {
		t.Fatalf("POST /api/tasks = %d; want 201", code)
	}
	if task.ID != "t1" || task.Status != library.StatusPending || task.Title != "Custom song" {
		t.Fatalf("POST /api/tasks = %+v", task)
	}

	fail = true
	if code := e.do(t, http.MethodPost, "/api/tasks", body, nil); code != http.StatusBadGateway {
		t.Fatalf("POST /api/tasks remote error = %d; want 502", code)
	}

	var list tasksResponse
	if code := e.do(t, http.MethodGet, "/api/tasks?folder=generated&q=HELLO", "", &list); code != http.StatusOK {
		t.Fatalf("GET /api/tasks = %d; want 200", code)
	}
	if len(list.Tasks) != 1 || list.Counts[library.FolderAll] != 1 || list.Counts[library.FolderUploads] != 0 {
		t.Fatalf("GET /api/tasks = %+v", list)
	}
	if code := e.do(t, http.MethodGet, "/api/tasks?folder=trash", "", nil); code != http.StatusBadRequest {
		t.Fatalf("GET /api/tasks?folder=trash = %d; want 400", code)
	}
	if code := e.do(t, http.MethodGet, "/api/tasks/t1", "", &task); code != http.StatusOK || task.ID != "t1" {
		t.Fatalf("GET /api/tasks/t1 = %d %+v", code, task)
	}
	if code := e.do(t, http.MethodGet, "/api/tasks/nope", "", nil); code != http.StatusNotFound {
		t.Fatalf("GET /api/tasks/nope = %d; want 404", code)
	}
}

func TestReference(t *testing.T) {
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
	now := time.Now()
	_ = e.studio.Tasks.Add(library.Task{ID: "t1", ClipID: "c1", Status: library.StatusSuccess, Duration: "2:05", CreatedAt: now})
	_ = e.studio.Tasks.Add(library.Task{ID: "t2", Status: library.StatusPending, CreatedAt: now})

	var ref referenceResponse
	if code := e.do(t, http.MethodPut, "/api/reference", `{"task_id":"t2"}`, nil); code != http.StatusConflict {
		t.Fatalf("PUT /api/reference pending = %d; want 409", code)
	}
	if code := e.do(t, http.MethodPut, "/api/reference", `{"task_id":"t1"}`, &ref); code != http.StatusOK {
		t.Fatalf("PUT /api/reference = %d; want 200", code)
	}
	if ref.Reference == nil || ref.Reference.ID != "c1" || !ref.Switched || ref.Mode != "extend" || ref.ContinueText != "2:05" {
		t.Fatalf("PUT /api/reference = %+v", ref)
	}

	e.do(t, http.MethodPut, "/api/reference/continue-at", `{"seconds":42}`, &ref)
	if ref.ContinueAt != 42 {
		t.Fatalf("continue at = %v; want 42", ref.ContinueAt)
	}
	e.do(t, http.MethodPut, "/api/reference/continue-at", `{"text":"1:30"}`, &ref)
	if ref.ContinueAt != 90 || ref.ContinueText != "1:30" {
		t.Fatalf("continue at = %v %q; want 90 1:30", ref.ContinueAt, ref.ContinueText)
	}
	if code := e.do(t, http.MethodPut, "/api/reference/continue-at", `{}`, nil); code != http.StatusBadRequest {
		t.Fatalf("PUT continue-at {} = %d; want 400", code)
	}
	e.do(t, http.MethodPut, "/api/reference/seek", `{"clip_id":"other","seconds":10}`, &ref)
	if ref.ContinueAt != 90 {
		t.Fatalf("seek on other clip changed offset to %v", ref.ContinueAt)
	}
	e.do(t, http.MethodPut, "/api/reference/seek", `{"clip_id":"c1","seconds":10}`, &ref)
	if ref.ContinueAt != 10 {
		t.Fatalf("continue at = %v; want 10", ref.ContinueAt)
	}

	if code := e.do(t, http.MethodPut, "/api/mode", `{"mode":"remix"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("PUT /api/mode remix = %d; want 400", code)
	}
	e.do(t, http.MethodPut, "/api/mode", `{"mode":"cover"}`, &ref)
	if ref.Mode != "cover" {
		t.Fatalf("mode = %s; want cover", ref.Mode)
	}

	e.do(t, http.MethodDelete, "/api/reference", "", &ref)
	if ref.Reference != nil {
		t.Fatalf("reference = %+v; want nil", ref.Reference)
	}
}

func TestPresets(t *testing.T) {
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {}, nil)

	var presets []storage.Preset
	if code := e.do(t, http.MethodPost, "/api/presets", `{"title":"Jazz","prompt":"smooth jazz"}`, &presets); code != http.StatusCreated || len(presets) != 1 {
		t.Fatalf("POST /api/presets = %d %v", code, presets)
	}
	if code := e.do(t, http.MethodPost, "/api/presets", `{"title":"x"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("POST /api/presets without prompt = %d; want 400", code)
	}
	var applied map[string]string
	if code := e.do(t, http.MethodPost, "/api/presets/0/apply", `{"style":"rock"}`, &applied); code != http.StatusOK || applied["style"] != "rock, smooth jazz" {
		t.Fatalf("POST apply = %d %v", code, applied)
	}
	if code := e.do(t, http.MethodPost, "/api/presets/3/apply", `{}`, nil); code != http.StatusNotFound {
		t.Fatalf("POST apply 3 = %d; want 404", code)
	}
	if code := e.do(t, http.MethodDelete, "/api/presets/0", "", &presets); code != http.StatusOK || len(presets) != 0 {
		t.Fatalf("DELETE /api/presets/0 = %d %v", code, presets)
	}
	if code := e.do(t, http.MethodDelete, "/api/presets/x", "", nil); code != http.StatusBadRequest {
		t.Fatalf("DELETE /api/presets/x = %d; want 400", code)
	}
}

func TestWavAndArchive(t *testing.T) {
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case suno.EndpointWav + "/c1":
			_, _ = w.Write([]byte(`{"url":"https://x/c1.wav"}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}, nil)
	e.studio.SetAPIKey("sk")
	_ = e.studio.Tasks.Add(library.Task{ID: "t1", ClipID: "c1", Status: library.StatusSuccess})

	var got map[string]string
	if code := e.do(t, http.MethodGet, "/api/tasks/t1/wav", "", &got); code != http.StatusOK || got["url"] != "https://x/c1.wav" {
		t.Fatalf("GET wav = %d %v", code, got)
	}
	if code := e.do(t, http.MethodGet, "/api/tasks/c2/wav", "", nil); code != http.StatusNotFound {
		t.Fatalf("GET wav unavailable = %d; want 404", code)
	}
	if code := e.do(t, http.MethodPost, "/api/tasks/t1/archive", "", nil); code != http.StatusConflict {
		t.Fatalf("POST archive without file store = %d; want 409", code)
	}
}

func TestExport(t *testing.T) {
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
	_ = e.studio.Tasks.Add(library.Task{ID: "t1", Status: library.StatusSuccess, Title: "Song"})
	resp, err := e.srv.Client().Get(e.srv.URL + "/api/tasks.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("Content-Type = %q; want text/csv", ct)
	}
	if !bytes.Contains(b, []byte("t1,")) {
		t.Fatalf("csv = %q; want t1 row", b)
	}
}

func TestBasicAuth(t *testing.T) {
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {}, &Config{
		Credentials: map[string]string{"admin": "secret"},
	})
	if code := e.do(t, http.MethodGet, "/api/key", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("GET /api/key without auth = %d; want 401", code)
	}
	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/key", nil)
	req.SetBasicAuth("admin", "secret")
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/key with auth = %d; want 200", resp.StatusCode)
	}
}

func TestUpload(t *testing.T) {
	var storageURL string
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case suno.EndpointUpload:
			_, _ = w.Write([]byte(`{"id":"u1","url":"` + storageURL + `"}`))
		case suno.EndpointUpload + "/u1":
			_, _ = w.Write([]byte(`{"status":"complete"}`))
		case suno.EndpointUpload + "/u1/initialize-clip":
			_, _ = w.Write([]byte(`{"clip_id":"c5"}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}, nil)
	bucket := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer bucket.Close()
	storageURL = bucket.URL
	e.studio.SetAPIKey("sk")

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, "song.mp3", "audio")
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/api/uploads", &buf)
	req.Header.Set("Content-Type", mw)
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var task library.Task
	_ = json.NewDecoder(resp.Body).Decode(&task)
	if resp.StatusCode != http.StatusCreated || task.ID != "c5" || task.Kind != library.KindUpload {
		t.Fatalf("POST /api/uploads = %d %+v", resp.StatusCode, task)
	}
	if ref, ok := e.studio.Reference.Current(); !ok || ref.ID != "c5" {
		t.Fatalf("reference = %+v, %v; want c5", ref, ok)
	}
}

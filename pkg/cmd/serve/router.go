package serve

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/igolaizola/sunostudio"
	"github.com/igolaizola/sunostudio/pkg/filestore"
	"github.com/igolaizola/sunostudio/pkg/library"
	"github.com/igolaizola/sunostudio/pkg/reference"
	"github.com/igolaizola/sunostudio/pkg/storage"
	"github.com/igolaizola/sunostudio/pkg/suno"
)

const maxUploadSize = 64 << 20

var validate = validator.New()

type keyRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

type selectRequest struct {
	TaskID string `json:"task_id" validate:"required"`
}

type continueRequest struct {
	Seconds *float64 `json:"seconds" validate:"required_without=Text"`
	Text    string   `json:"text" validate:"required_without=Seconds"`
}

type seekRequest struct {
	ClipID  string  `json:"clip_id" validate:"required"`
	Seconds float64 `json:"seconds" validate:"gte=0"`
}

type modeRequest struct {
	Mode reference.Mode `json:"mode" validate:"required,oneof=create extend cover"`
}

type presetRequest struct {
	Title  string `json:"title" validate:"required"`
	Prompt string `json:"prompt" validate:"required"`
}

type applyRequest struct {
	Style string `json:"style"`
}

type tasksResponse struct {
	Tasks  []library.Task         `json:"tasks"`
	Counts map[library.Folder]int `json:"counts"`
}

type referenceResponse struct {
	Reference    *reference.Clip `json:"reference"`
	Mode         reference.Mode  `json:"mode"`
	ContinueAt   float64         `json:"continue_at"`
	ContinueText string          `json:"continue_text"`
	Switched     bool            `json:"switched,omitempty"`
}

type badRequest struct {
	err error
}

func (e *badRequest) Error() string {
	return e.err.Error()
}

func (e *badRequest) Unwrap() error {
	return e.err
}

func newRouter(studio *sunostudio.Studio, store *storage.Store, fs *filestore.Store, cfg *Config) http.Handler {
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	if cfg.Debug {
		mux.Use(middleware.Logger)
	}

	// Add BasicAuth middleware
	if len(cfg.Credentials) > 0 {
		mux.Use(middleware.BasicAuth("private", cfg.Credentials))
	}

	// Handler to serve static files defined via volumes
	for local, path := range cfg.Volumes {
		path = strings.Trim(path, "/")
		path = fmt.Sprintf("/%s/", path)
		if path == "//" {
			path = "/"
		}
		mux.Get(path+"*", http.StripPrefix(path, http.FileServer(http.Dir(local))).ServeHTTP)
	}

	mux.Route("/api", func(r chi.Router) {
		// Uploads wait for remote processing so they get a longer timeout
		r.With(middleware.Timeout(5*time.Minute)).Post("/uploads", func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
			file, header, err := r.FormFile("file")
			if err != nil {
				writeError(w, &badRequest{fmt.Errorf("missing file: %w", err)})
				return
			}
			defer file.Close()
			task, err := studio.Upload(r.Context(), header.Filename, file, header.Header.Get("Content-Type"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, task)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/key", func(w http.ResponseWriter, r *http.Request) {
				configured := studio.Client.Credential().Key() != ""
				writeJSON(w, http.StatusOK, map[string]bool{"configured": configured})
			})
			r.Put("/key", func(w http.ResponseWriter, r *http.Request) {
				var req keyRequest
				if err := decode(r, &req); err != nil {
					writeError(w, err)
					return
				}
				if err := store.SetAPIKey(r.Context(), req.APIKey); err != nil {
					writeError(w, err)
					return
				}
				studio.SetAPIKey(req.APIKey)
				w.WriteHeader(http.StatusNoContent)
			})
			r.Delete("/key", func(w http.ResponseWriter, r *http.Request) {
				if err := store.SetAPIKey(r.Context(), ""); err != nil {
					writeError(w, err)
					return
				}
				studio.SetAPIKey("")
				w.WriteHeader(http.StatusNoContent)
			})

			r.Get("/tasks", func(w http.ResponseWriter, r *http.Request) {
				folder, err := library.ParseFolder(r.URL.Query().Get("folder"))
				if err != nil {
					writeError(w, &badRequest{err})
					return
				}
				now := time.Now()
				all := studio.Tasks.List()
				writeJSON(w, http.StatusOK, &tasksResponse{
					Tasks:  library.Filter(all, folder, r.URL.Query().Get("q"), now),
					Counts: library.Counts(all, now),
				})
			})
			r.Get("/tasks.csv", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/csv")
				w.Header().Set("Content-Disposition", `attachment; filename="tasks.csv"`)
				if err := library.ExportCSV(w, studio.Tasks.List()); err != nil {
					log.Println("serve: couldn't export tasks:", err)
				}
			})
			r.Post("/tasks", func(w http.ResponseWriter, r *http.Request) {
				var in suno.Intent
				if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
					writeError(w, &badRequest{fmt.Errorf("invalid json: %w", err)})
					return
				}
				task, err := studio.Submit(r.Context(), &in)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusCreated, task)
			})
			r.Get("/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				task, ok := studio.Tasks.Get(id)
				if !ok {
					writeError(w, fmt.Errorf("%w: %s", sunostudio.ErrTaskNotFound, id))
					return
				}
				writeJSON(w, http.StatusOK, task)
			})
			r.Get("/tasks/{id}/wav", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				u, err := studio.Wav(r.Context(), id)
				if err != nil {
					writeError(w, err)
					return
				}
				if u == "" {
					writeError(w, fmt.Errorf("%w: wav of %s", sunostudio.ErrUnavailable, id))
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"url": u})
			})
			r.Post("/tasks/{id}/archive", func(w http.ResponseWriter, r *http.Request) {
				if fs == nil {
					writeJSON(w, http.StatusConflict, map[string]string{"error": "no file storage configured"})
					return
				}
				format := filestore.Format(r.URL.Query().Get("format"))
				if format == "" {
					format = filestore.FormatMP3
				}
				if format != filestore.FormatMP3 && format != filestore.FormatWAV {
					writeError(w, &badRequest{fmt.Errorf("unknown format %q", format)})
					return
				}
				name, err := studio.Archive(r.Context(), fs, chi.URLParam(r, "id"), format)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"name": name})
			})

			r.Get("/reference", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, referenceState(studio.Reference, false))
			})
			r.Put("/reference", func(w http.ResponseWriter, r *http.Request) {
				var req selectRequest
				if err := decode(r, &req); err != nil {
					writeError(w, err)
					return
				}
				_, switched, err := studio.SelectTask(req.TaskID)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, referenceState(studio.Reference, switched))
			})
			r.Delete("/reference", func(w http.ResponseWriter, r *http.Request) {
				studio.Reference.Clear()
				writeJSON(w, http.StatusOK, referenceState(studio.Reference, false))
			})
			r.Put("/reference/continue-at", func(w http.ResponseWriter, r *http.Request) {
				var req continueRequest
				if err := decode(r, &req); err != nil {
					writeError(w, err)
					return
				}
				if req.Seconds != nil {
					studio.Reference.UpdateContinueAt(*req.Seconds)
				} else {
					studio.Reference.SetContinueText(req.Text)
				}
				writeJSON(w, http.StatusOK, referenceState(studio.Reference, false))
			})
			r.Put("/reference/seek", func(w http.ResponseWriter, r *http.Request) {
				var req seekRequest
				if err := decode(r, &req); err != nil {
					writeError(w, err)
					return
				}
				studio.Reference.Seek(req.ClipID, req.Seconds)
				writeJSON(w, http.StatusOK, referenceState(studio.Reference, false))
			})
			r.Put("/mode", func(w http.ResponseWriter, r *http.Request) {
				var req modeRequest
				if err := decode(r, &req); err != nil {
					writeError(w, err)
					return
				}
				studio.Reference.SetMode(req.Mode)
				writeJSON(w, http.StatusOK, referenceState(studio.Reference, false))
			})

			r.Get("/presets", func(w http.ResponseWriter, r *http.Request) {
				presets, err := store.Presets(r.Context())
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, presets)
			})
			r.Post("/presets", func(w http.ResponseWriter, r *http.Request) {
				var req presetRequest
				if err := decode(r, &req); err != nil {
					writeError(w, err)
					return
				}
				presets, err := store.AddPreset(r.Context(), req.Title, req.Prompt)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusCreated, presets)
			})
			r.Delete("/presets/{idx}", func(w http.ResponseWriter, r *http.Request) {
				idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
				if err != nil {
					writeError(w, &badRequest{fmt.Errorf("invalid index: %w", err)})
					return
				}
				presets, err := store.DeletePreset(r.Context(), idx)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, presets)
			})
			r.Post("/presets/{idx}/apply", func(w http.ResponseWriter, r *http.Request) {
				idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
				if err != nil {
					writeError(w, &badRequest{fmt.Errorf("invalid index: %w", err)})
					return
				}
				var req applyRequest
				if err := decode(r, &req); err != nil {
					writeError(w, err)
					return
				}
				presets, err := store.Presets(r.Context())
				if err != nil {
					writeError(w, err)
					return
				}
				if idx < 0 || idx >= len(presets) {
					writeError(w, fmt.Errorf("preset %d: %w", idx, storage.ErrNotFound))
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"style": presets[idx].Apply(req.Style)})
			})
		})
	})
	return mux
}

func referenceState(c *reference.Coordinator, switched bool) *referenceResponse {
	resp := &referenceResponse{
		Mode:         c.Mode(),
		ContinueAt:   c.ContinueSeconds(),
		ContinueText: c.ContinueText(),
		Switched:     switched,
	}
	if clip, ok := c.Current(); ok {
		resp.Reference = &clip
	}
	return resp
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &badRequest{fmt.Errorf("invalid json: %w", err)}
	}
	if err := validate.Struct(v); err != nil {
		return &badRequest{err}
	}
	return nil
}

func statusOf(err error) int {
	var bad *badRequest
	var verr *suno.ValidationError
	var remote *suno.RemoteError
	switch {
	case errors.As(err, &bad), errors.As(err, &verr), errors.Is(err, storage.ErrInvalidPreset):
		return http.StatusBadRequest
	case errors.Is(err, suno.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, sunostudio.ErrTaskNotFound), errors.Is(err, storage.ErrNotFound),
		errors.Is(err, sunostudio.ErrUnavailable):
		return http.StatusNotFound
	case errors.Is(err, sunostudio.ErrTaskNotReady):
		return http.StatusConflict
	case errors.Is(err, suno.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &remote), errors.Is(err, suno.ErrMalformedResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Println("serve:", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("serve: couldn't encode response:", err)
	}
}

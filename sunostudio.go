package sunostudio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/igolaizola/sunostudio/pkg/filestore"
	"github.com/igolaizola/sunostudio/pkg/library"
	"github.com/igolaizola/sunostudio/pkg/reference"
	"github.com/igolaizola/sunostudio/pkg/suno"
)

var (
	ErrTaskNotFound = errors.New("sunostudio: task not found")
	ErrTaskNotReady = errors.New("sunostudio: task has not succeeded")
	ErrUnavailable  = errors.New("sunostudio: audio not available")
)

type Config struct {
	Debug        bool
	BaseURL      string
	Proxy        string
	APIKey       string
	Wait         time.Duration
	PollInterval time.Duration
	Timeout      time.Duration

	UploadWait     time.Duration
	UploadAttempts int
}

// Studio ties the remote client, the task library and the reference
// selection together.
type Studio struct {
	Client    *suno.Client
	Tasks     *library.Store
	Poller    *library.Poller
	Reference *reference.Coordinator

	httpClient *http.Client
	debug      bool
	now        func() time.Time
}

// NewHTTPClient returns an HTTP client that goes through the proxy if one
// is given.
func NewHTTPClient(proxy string, timeout time.Duration) (*http.Client, error) {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}
	return httpClient, nil
}

func New(cfg *Config) (*Studio, error) {
	httpClient, err := NewHTTPClient(cfg.Proxy, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("sunostudio: %w", err)
	}
	client := suno.New(&suno.Config{
		BaseURL:    cfg.BaseURL,
		Wait:       cfg.Wait,
		Debug:      cfg.Debug,
		Client:     httpClient,
		Credential: suno.NewCredential(cfg.APIKey),

		UploadWait:     cfg.UploadWait,
		UploadAttempts: cfg.UploadAttempts,
	})
	tasks := library.NewStore()
	return &Studio{
		Client: client,
		Tasks:  tasks,
		Poller: library.NewPoller(client, tasks, &library.PollerConfig{
			Interval: cfg.PollInterval,
			Debug:    cfg.Debug,
		}),
		Reference:  reference.New(),
		httpClient: httpClient,
		debug:      cfg.Debug,
		now:        time.Now,
	}, nil
}

func (s *Studio) log(format string, args ...interface{}) {
	if s.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Run polls unsettled tasks until the context is done.
func (s *Studio) Run(ctx context.Context) error {
	return s.Poller.Run(ctx)
}

// SetAPIKey changes the credential used by every later remote call.
func (s *Studio) SetAPIKey(key string) {
	s.Client.Credential().Set(key)
}

// Submit sends a creation request and records the new task. Extend and cover
// requests without a reference clip use the active reference, and extend
// requests without an offset continue from its offset.
func (s *Studio) Submit(ctx context.Context, in *suno.Intent) (library.Task, error) {
	intent := *in
	if intent.ReferenceClipID == "" && (intent.Mode == suno.ModeExtend || intent.Mode == suno.ModeCover) {
		if ref, ok := s.Reference.Current(); ok {
			intent.ReferenceClipID = ref.ID
			if intent.Mode == suno.ModeExtend && intent.ContinueAt == 0 {
				intent.ContinueAt = ref.Duration
				if ref.ContinueAt != nil {
					intent.ContinueAt = *ref.ContinueAt
				}
			}
		}
	}
	id, err := s.Client.Submit(ctx, &intent)
	if err != nil {
		return library.Task{}, err
	}
	task := library.NewTask(id, &intent, s.now())
	if err := s.Tasks.Add(task); err != nil {
		return library.Task{}, fmt.Errorf("sunostudio: couldn't record task %s: %w", id, err)
	}
	s.log("sunostudio: submitted %s task %s", intent.Mode, id)
	return task, nil
}

// Upload sends an audio file, records it as a finished task and selects it
// as the active reference. The working mode always switches to extend.
func (s *Studio) Upload(ctx context.Context, filename string, r io.Reader, contentType string) (library.Task, error) {
	up, err := s.Client.Upload(ctx, filename, r, contentType)
	if err != nil {
		return library.Task{}, err
	}
	if up.Title == "" {
		up.Title = filename
	}
	task := library.NewUploadTask(up, s.now())
	if err := s.Tasks.Add(task); err != nil {
		return library.Task{}, fmt.Errorf("sunostudio: couldn't record upload %s: %w", up.ClipID, err)
	}
	s.Reference.Select(reference.Clip{
		ID:    up.ClipID,
		Title: up.Title,
		URL:   up.AudioURL,
	})
	s.Reference.SetMode(reference.ModeExtend)
	s.log("sunostudio: uploaded %s as clip %s", filename, up.ClipID)
	return task, nil
}

// SelectTask makes a succeeded task the active reference. It reports whether
// the working mode switched to extend.
func (s *Studio) SelectTask(id string) (reference.Clip, bool, error) {
	task, ok := s.Tasks.Get(id)
	if !ok {
		return reference.Clip{}, false, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status != library.StatusSuccess {
		return reference.Clip{}, false, fmt.Errorf("%w: %s is %s", ErrTaskNotReady, id, task.Status)
	}
	clip := reference.FromTask(task)
	switched := s.Reference.Select(clip)
	current, _ := s.Reference.Current()
	return current, switched, nil
}

// Wav returns a WAV URL for the clip of a task, or an empty string if the
// service has none.
func (s *Studio) Wav(ctx context.Context, id string) (string, error) {
	return s.Client.Wav(ctx, s.ClipID(id))
}

// ClipID returns the clip identifier of a task, or the given id when no
// task with a clip is known.
func (s *Studio) ClipID(id string) string {
	if task, ok := s.Tasks.Get(id); ok && task.ClipID != "" {
		return task.ClipID
	}
	return id
}

// AudioURL resolves where the audio of a task or clip can be downloaded in
// the given format.
func (s *Studio) AudioURL(ctx context.Context, id string, f filestore.Format) (string, error) {
	var u string
	switch f {
	case filestore.FormatWAV:
		candidate, err := s.Wav(ctx, id)
		if err != nil {
			return "", err
		}
		u = candidate
	default:
		if task, ok := s.Tasks.Get(id); ok {
			u = task.ResultAudioURL
		}
		if u == "" {
			clip, err := s.Client.Clip(ctx, s.ClipID(id))
			if err != nil {
				return "", err
			}
			u = clip.AudioURL
		}
	}
	if u == "" {
		return "", fmt.Errorf("%w: %s %s", ErrUnavailable, id, f)
	}
	return u, nil
}

// Archive downloads the audio of a task or clip into the file store unless
// it is already there. It returns the stored file name.
func (s *Studio) Archive(ctx context.Context, fs *filestore.Store, id string, f filestore.Format) (string, error) {
	clipID := s.ClipID(id)
	name := filestore.Name(clipID, f)
	ok, err := fs.HasAudio(ctx, clipID, f)
	if err != nil {
		return "", fmt.Errorf("sunostudio: couldn't check %s: %w", name, err)
	}
	if ok {
		s.log("sunostudio: %s already archived", name)
		return name, nil
	}
	u, err := s.AudioURL(ctx, id, f)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := Download(ctx, s.httpClient, u, &buf); err != nil {
		return "", fmt.Errorf("sunostudio: %w", err)
	}
	if err := fs.SetAudio(ctx, &buf, clipID, f); err != nil {
		return "", fmt.Errorf("sunostudio: couldn't store %s: %w", name, err)
	}
	log.Printf("sunostudio: archived %s\n", name)
	return name, nil
}

// Download writes the content at the url to w.
func Download(ctx context.Context, client *http.Client, u string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("couldn't create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("couldn't download %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("couldn't download %s: status %d", u, resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("couldn't write %s: %w", u, err)
	}
	return nil
}

package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/igolaizola/sunostudio/pkg/ratelimit"
)

const DefaultBaseURL = "https://ai.comfly.chat"

type Client struct {
	client         *http.Client
	baseURL        string
	debug          bool
	ratelimit      ratelimit.Lock
	credential     *Credential
	uploadWait     time.Duration
	uploadAttempts int
}

type Config struct {
	BaseURL    string
	Wait       time.Duration
	Debug      bool
	Client     *http.Client
	Credential *Credential

	// UploadWait is the interval between upload status checks.
	UploadWait time.Duration
	// UploadAttempts caps the number of upload status checks.
	UploadAttempts int
}

// Credential holds the API key shared by every remote call. It starts empty
// and is only changed through Set.
type Credential struct {
	lck sync.RWMutex
	key string
}

func NewCredential(key string) *Credential {
	return &Credential{key: strings.TrimSpace(key)}
}

func (c *Credential) Set(key string) {
	c.lck.Lock()
	defer c.lck.Unlock()
	c.key = strings.TrimSpace(key)
}

func (c *Credential) Key() string {
	c.lck.RLock()
	defer c.lck.RUnlock()
	return c.key
}

func New(cfg *Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 2 * time.Minute,
		}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	credential := cfg.Credential
	if credential == nil {
		credential = NewCredential("")
	}
	uploadWait := cfg.UploadWait
	if uploadWait == 0 {
		uploadWait = 2 * time.Second
	}
	uploadAttempts := cfg.UploadAttempts
	if uploadAttempts == 0 {
		uploadAttempts = 30
	}
	return &Client{
		client:         client,
		baseURL:        baseURL,
		debug:          cfg.Debug,
		ratelimit:      ratelimit.New(cfg.Wait),
		credential:     credential,
		uploadWait:     uploadWait,
		uploadAttempts: uploadAttempts,
	}
}

// Credential returns the credential used by the client.
func (c *Client) Credential() *Credential {
	return c.credential
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Call sends a request to the remote API and decodes the JSON response into
// out. It performs no retries.
func (c *Client) Call(ctx context.Context, method, endpoint string, in, out any) error {
	_, err := c.do(ctx, method, endpoint, in, out)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) ([]byte, error) {
	key := c.credential.Key()
	if key == "" {
		return nil, ErrUnauthenticated
	}

	var body []byte
	var reqBody io.Reader
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("suno: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	c.log("suno: do %s %s %s", method, endpoint, string(body))

	u := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("suno: couldn't create request: %w", err)
	}
	req.Header.Set("authorization", fmt.Sprintf("Bearer %s", key))
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	unlock := c.ratelimit.Lock(ctx)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("suno: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suno: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("suno: couldn't read response body: %w", err)
	}
	c.log("suno: response %s %s %d %s", method, endpoint, resp.StatusCode, string(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Status: resp.StatusCode, Body: string(respBody)}
	}

	// An empty body is an empty object
	if len(bytes.TrimSpace(respBody)) == 0 {
		respBody = []byte("{}")
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("%w: %s %s", ErrMalformedResponse, method, endpoint)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("%w: %s %s (%T): %v", ErrMalformedResponse, method, endpoint, out, err)
		}
	}
	return respBody, nil
}

// unwrap returns the value of the "data" field if the response is wrapped in
// one, otherwise the response itself.
func unwrap(raw []byte) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	data, ok := obj["data"]
	if !ok || isEmptyJSON(data) {
		return raw
	}
	return data
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}

package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const EndpointUpload = "/suno/uploads/audio"

// Upload is a clip created from a user supplied audio file.
type Upload struct {
	ClipID   string
	Title    string
	Lyrics   string
	AudioURL string
}

type uploadTarget struct {
	ID     string                     `json:"id"`
	URL    string                     `json:"url"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// Upload sends an audio file to the remote service and waits until it is
// usable as a clip.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, contentType string) (*Upload, error) {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		ext = "mp3"
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("suno: couldn't read %s: %w", filename, err)
	}

	// Initialize the upload
	var raw json.RawMessage
	if err := c.Call(ctx, http.MethodPost, EndpointUpload, map[string]string{"extension": ext}, &raw); err != nil {
		return nil, fmt.Errorf("suno: couldn't initialize upload: %w", err)
	}
	var target uploadTarget
	if err := json.Unmarshal(unwrap(raw), &target); err != nil {
		return nil, fmt.Errorf("%w: upload init: %v", ErrMalformedResponse, err)
	}
	if target.ID == "" || target.URL == "" {
		return nil, fmt.Errorf("%w: upload init missing url or id", ErrMalformedResponse)
	}
	base := fmt.Sprintf("%s/%s", EndpointUpload, url.PathEscape(target.ID))
	c.log("suno: upload %s initialized as %s", filename, target.ID)

	if err := c.transfer(ctx, &target, filename, data, contentType); err != nil {
		return nil, err
	}

	finish := map[string]string{
		"upload_type":     "file_upload",
		"upload_filename": filename,
	}
	if err := c.Call(ctx, http.MethodPost, base+"/upload-finish", finish, nil); err != nil {
		return nil, fmt.Errorf("suno: couldn't finish upload %s: %w", target.ID, err)
	}

	if err := c.waitUpload(ctx, base, target.ID); err != nil {
		return nil, err
	}

	raw = nil
	if err := c.Call(ctx, http.MethodPost, base+"/initialize-clip", struct{}{}, &raw); err != nil {
		return nil, fmt.Errorf("suno: couldn't initialize clip for upload %s: %w", target.ID, err)
	}
	var clip struct {
		ClipID string `json:"clip_id"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(unwrap(raw), &clip); err != nil {
		return nil, fmt.Errorf("%w: initialize clip: %v", ErrMalformedResponse, err)
	}
	up := &Upload{ClipID: clip.ClipID}
	if up.ClipID == "" {
		up.ClipID = clip.ID
	}
	if up.ClipID == "" {
		return nil, fmt.Errorf("%w: no clip id for upload %s", ErrMalformedResponse, target.ID)
	}

	// Metadata is best effort, the clip is usable without it
	select {
	case <-ctx.Done():
		return up, nil
	case <-time.After(c.uploadWait / 2):
	}
	meta, err := c.Clip(ctx, up.ClipID)
	if err != nil {
		log.Printf("suno: couldn't get metadata of uploaded clip %s: %v\n", up.ClipID, err)
		return up, nil
	}
	up.Lyrics = meta.Metadata.Prompt
	if up.Lyrics == "" {
		up.Lyrics = meta.Prompt
	}
	up.Title = meta.Title
	up.AudioURL = meta.AudioURL
	return up, nil
}

// transfer sends the file to the upload target, either as a multipart form
// when the target provides form fields or as a plain PUT otherwise.
func (c *Client) transfer(ctx context.Context, target *uploadTarget, filename string, data []byte, contentType string) error {
	var req *http.Request
	if target.Fields != nil {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		keys := make([]string, 0, len(target.Fields))
		for k := range target.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := w.WriteField(k, formValue(target.Fields[k])); err != nil {
				return fmt.Errorf("suno: couldn't write form field %s: %w", k, err)
			}
		}
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			return fmt.Errorf("suno: couldn't create form file: %w", err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("suno: couldn't write form file: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("suno: couldn't close form: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &buf)
		if err != nil {
			return fmt.Errorf("suno: couldn't create request: %w", err)
		}
		req.Header.Set("content-type", w.FormDataContentType())
	} else {
		if contentType == "" {
			contentType = "audio/mpeg"
		}
		var err error
		req, err = http.NewRequestWithContext(ctx, http.MethodPut, target.URL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("suno: couldn't create request: %w", err)
		}
		req.Header.Set("content-type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("suno: couldn't transfer %s: %w", filename, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("suno: couldn't transfer %s: %w", filename, &RemoteError{Status: resp.StatusCode, Body: string(body)})
	}
	return nil
}

func formValue(raw json.RawMessage) string {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return string(raw)
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	}
	return string(raw)
}

// waitUpload polls the upload status until it settles or the attempt budget
// is exhausted. Failed checks are logged and count as attempts.
func (c *Client) waitUpload(ctx context.Context, endpoint, id string) error {
	for attempt := 1; attempt <= c.uploadAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("suno: %w", ctx.Err())
		case <-time.After(c.uploadWait):
		}
		var raw json.RawMessage
		if err := c.Call(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
			log.Printf("suno: couldn't check upload %s (attempt %d): %v\n", id, attempt, err)
			continue
		}
		var st struct {
			Status       string `json:"status"`
			ErrorMessage string `json:"error_message"`
		}
		if err := json.Unmarshal(unwrap(raw), &st); err != nil {
			log.Printf("suno: couldn't parse upload status %s (attempt %d): %v\n", id, attempt, err)
			continue
		}
		switch StateOf(st.Status) {
		case StateSuccess:
			return nil
		case StateFailed:
			msg := st.ErrorMessage
			if msg == "" {
				msg = "unknown error"
			}
			return fmt.Errorf("suno: upload %s failed: %s", id, msg)
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrTimeout, id, c.uploadAttempts)
}

package suno

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// State is the canonical status of a remote task.
type State string

const (
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Clip is a single audio clip record as returned by the remote service.
type Clip struct {
	ID            string       `json:"id"`
	AudioURL      string       `json:"audio_url"`
	ImageURL      string       `json:"image_url"`
	ImageLargeURL string       `json:"image_large_url"`
	VideoURL      string       `json:"video_url"`
	Title         string       `json:"title"`
	ModelName     string       `json:"model_name"`
	Status        string       `json:"status"`
	Prompt        string       `json:"prompt"`
	Metadata      ClipMetadata `json:"metadata"`
}

type ClipMetadata struct {
	Duration             float64 `json:"duration"`
	Prompt               string  `json:"prompt"`
	Tags                 string  `json:"tags"`
	GPTDescriptionPrompt string  `json:"gpt_description_prompt"`
	Type                 string  `json:"type"`
	AudioPromptID        string  `json:"audio_prompt_id"`
	ErrorMessage         string  `json:"error_message"`
}

// CanonicalStatus is the single shape every status response is reduced to.
type CanonicalStatus struct {
	TaskID     string
	Status     State
	Clips      []Clip
	FailReason string
}

// First returns the first clip, which is the only one tracked.
func (s *CanonicalStatus) First() (Clip, bool) {
	if s == nil || len(s.Clips) == 0 {
		return Clip{}, false
	}
	return s.Clips[0], true
}

// envelope is the wrapper used by the fetch endpoint.
type envelope struct {
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type taskRecord struct {
	TaskID     string `json:"task_id"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason"`
	FinishTime int64  `json:"finish_time"`
	Progress   string `json:"progress"`
	Data       []Clip `json:"data"`
}

var errNoClips = errors.New("suno: feed returned no clips")

// StateOf maps a remote status string to its canonical equivalent.
func StateOf(status string) State {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "complete", "success":
		return StateSuccess
	case "error", "failed":
		return StateFailed
	}
	return StateRunning
}

// feedState reports success only when every clip succeeded. Any failure
// dominates otherwise.
func feedState(clips []Clip) State {
	all := true
	failed := false
	for _, c := range clips {
		switch StateOf(c.Status) {
		case StateSuccess:
		case StateFailed:
			all = false
			failed = true
		default:
			all = false
		}
	}
	switch {
	case all:
		return StateSuccess
	case failed:
		return StateFailed
	}
	return StateRunning
}

// feedClips flattens the three feed shapes into a list of clips: a bare
// array, an object with a "clips" array, or an object whose "data" is a
// record or an array of records.
func feedClips(raw []byte) ([]Clip, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty feed", ErrMalformedResponse)
	}
	var clips []Clip
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &clips); err != nil {
			return nil, fmt.Errorf("%w: feed: %v", ErrMalformedResponse, err)
		}
	case '{':
		var obj struct {
			Clips []Clip          `json:"clips"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: feed: %v", ErrMalformedResponse, err)
		}
		data := bytes.TrimSpace(obj.Data)
		switch {
		case obj.Clips != nil:
			clips = obj.Clips
		case len(data) > 0 && data[0] == '[':
			if err := json.Unmarshal(data, &clips); err != nil {
				return nil, fmt.Errorf("%w: feed data: %v", ErrMalformedResponse, err)
			}
		case len(data) > 0 && data[0] == '{':
			var c Clip
			if err := json.Unmarshal(data, &c); err != nil {
				return nil, fmt.Errorf("%w: feed data: %v", ErrMalformedResponse, err)
			}
			clips = []Clip{c}
		}
	default:
		return nil, fmt.Errorf("%w: unexpected feed shape", ErrMalformedResponse)
	}
	if len(clips) == 0 {
		return nil, errNoClips
	}
	return clips, nil
}

// NormalizeFeed reduces a feed response for the given task to a canonical
// status.
func NormalizeFeed(taskID string, raw []byte) (*CanonicalStatus, error) {
	clips, err := feedClips(raw)
	if err != nil {
		return nil, err
	}
	return &CanonicalStatus{
		TaskID: taskID,
		Status: feedState(clips),
		Clips:  clips,
	}, nil
}

// NormalizeFetch reduces an enveloped fetch response to a canonical status.
func NormalizeFetch(raw []byte) (*CanonicalStatus, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", ErrMalformedResponse, err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: fetch without task data (%s)", ErrMalformedResponse, env.Message)
	}
	var rec taskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: fetch data: %v", ErrMalformedResponse, err)
	}
	return &CanonicalStatus{
		TaskID:     rec.TaskID,
		Status:     StateOf(rec.Status),
		Clips:      rec.Data,
		FailReason: rec.FailReason,
	}, nil
}

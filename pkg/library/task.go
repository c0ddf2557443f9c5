package library

import (
	"strings"
	"time"

	"github.com/igolaizola/sunostudio/pkg/suno"
)

// Kind is the kind of work a task tracks. It never changes after creation.
type Kind string

const (
	KindMusic  Kind = "MUSIC"
	KindLyrics Kind = "LYRICS"
	KindStems  Kind = "STEMS"
	KindUpload Kind = "UPLOAD"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Settled reports whether the status is terminal.
func (s Status) Settled() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s Status) rank() int {
	switch s {
	case StatusProcessing:
		return 1
	case StatusSuccess, StatusFailed:
		return 2
	}
	return 0
}

const (
	defaultSimpleTitle = "New song"
	defaultCustomTitle = "Custom song"
)

// Task is a unit of submitted work tracked through its lifecycle.
type Task struct {
	ID        string    `json:"id"`
	ClipID    string    `json:"clip_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"status"`
	Kind      Kind      `json:"kind"`

	Prompt          string `json:"prompt"`
	Tags            string `json:"tags,omitempty"`
	Title           string `json:"title,omitempty"`
	IsExtend        bool   `json:"is_extend,omitempty"`
	IsCover         bool   `json:"is_cover,omitempty"`
	ReferenceClipID string `json:"reference_clip_id,omitempty"`

	ResultAudioURL string `json:"result_audio_url,omitempty"`
	ResultVideoURL string `json:"result_video_url,omitempty"`
	CoverImageURL  string `json:"cover_image_url,omitempty"`
	Duration       string `json:"duration,omitempty"`
	Lyrics         string `json:"lyrics,omitempty"`
	FailReason     string `json:"fail_reason,omitempty"`
}

// NewTask returns the pending task recorded for a submitted intent.
func NewTask(id string, in *suno.Intent, now time.Time) Task {
	kind := KindMusic
	if in.Mode == suno.ModeExtend || in.Mode == suno.ModeCover {
		kind = KindUpload
	}
	prompt := in.Prompt
	if prompt == "" {
		prompt = in.Description
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultCustomTitle
		if in.Mode == suno.ModeSimple {
			title = defaultSimpleTitle
		}
	}
	return Task{
		ID:              id,
		CreatedAt:       now,
		Status:          StatusPending,
		Kind:            kind,
		Prompt:          prompt,
		Tags:            in.Tags,
		Title:           title,
		IsExtend:        in.Mode == suno.ModeExtend,
		IsCover:         in.Mode == suno.ModeCover,
		ReferenceClipID: in.ReferenceClipID,
	}
}

// NewUploadTask returns the task recorded for an uploaded clip. Uploads are
// only reported once usable so they start settled.
func NewUploadTask(up *suno.Upload, now time.Time) Task {
	return Task{
		ID:             up.ClipID,
		ClipID:         up.ClipID,
		CreatedAt:      now,
		Status:         StatusSuccess,
		Kind:           KindUpload,
		Title:          up.Title,
		Lyrics:         up.Lyrics,
		ResultAudioURL: up.AudioURL,
	}
}

package library

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
)

type csvTask struct {
	ID              string `csv:"id"`
	ClipID          string `csv:"clip_id"`
	CreatedAt       string `csv:"created_at"`
	Status          Status `csv:"status"`
	Kind            Kind   `csv:"kind"`
	Title           string `csv:"title"`
	Prompt          string `csv:"prompt"`
	Tags            string `csv:"tags"`
	ReferenceClipID string `csv:"reference_clip_id"`
	Duration        string `csv:"duration"`
	AudioURL        string `csv:"audio_url"`
	VideoURL        string `csv:"video_url"`
	ImageURL        string `csv:"image_url"`
	FailReason      string `csv:"fail_reason"`
}

// ExportCSV writes the tasks as CSV with a header row.
func ExportCSV(w io.Writer, tasks []Task) error {
	rows := make([]*csvTask, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, &csvTask{
			ID:              t.ID,
			ClipID:          t.ClipID,
			CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
			Status:          t.Status,
			Kind:            t.Kind,
			Title:           t.Title,
			Prompt:          t.Prompt,
			Tags:            t.Tags,
			ReferenceClipID: t.ReferenceClipID,
			Duration:        t.Duration,
			AudioURL:        t.ResultAudioURL,
			VideoURL:        t.ResultVideoURL,
			ImageURL:        t.CoverImageURL,
			FailReason:      t.FailReason,
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("library: couldn't export tasks: %w", err)
	}
	return nil
}

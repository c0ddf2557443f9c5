package library

import (
	"github.com/igolaizola/sunostudio/pkg/suno"
	"github.com/igolaizola/sunostudio/pkg/timecode"
)

// Merge applies a canonical status to a task and returns the result. Only
// fields present in the status are written, so values already recorded are
// never retracted, and applying the same status twice is the same as
// applying it once. Settled tasks are returned unchanged.
//
// Only the first clip is used, sibling variants are ignored.
func Merge(t Task, st *suno.CanonicalStatus) Task {
	if st == nil || t.Status.Settled() {
		return t
	}

	next := StatusProcessing
	switch st.Status {
	case suno.StateSuccess:
		next = StatusSuccess
	case suno.StateFailed:
		next = StatusFailed
	}
	if next.rank() > t.Status.rank() {
		t.Status = next
	}

	clip, ok := st.First()
	if next == StatusFailed {
		reason := st.FailReason
		if reason == "" && ok {
			reason = clip.Metadata.ErrorMessage
		}
		if reason != "" {
			t.FailReason = reason
		}
	}
	if !ok {
		return t
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&t.ClipID, clip.ID)
	set(&t.ResultAudioURL, clip.AudioURL)
	set(&t.ResultVideoURL, clip.VideoURL)
	if clip.ImageLargeURL != "" {
		t.CoverImageURL = clip.ImageLargeURL
	} else if t.CoverImageURL == "" {
		t.CoverImageURL = clip.ImageURL
	}
	set(&t.Title, clip.Title)
	if clip.Metadata.Duration > 0 {
		t.Duration = timecode.Format(clip.Metadata.Duration)
	}
	if t.Kind == KindLyrics && t.Lyrics == "" {
		t.Lyrics = clip.Metadata.Prompt
	}
	return t
}

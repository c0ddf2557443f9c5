// Package reference tracks the clip selected as the basis for extend and
// cover submissions.
package reference

import (
	"sync"

	"github.com/igolaizola/sunostudio/pkg/library"
	"github.com/igolaizola/sunostudio/pkg/timecode"
)

// Mode is the working mode of the submission form.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeExtend Mode = "extend"
	ModeCover  Mode = "cover"
)

// Clip is the active reference.
type Clip struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	URL      string  `json:"url,omitempty"`
	// ContinueAt is the user chosen offset in seconds, nil if unset.
	ContinueAt *float64 `json:"continue_at,omitempty"`
}

// FromTask builds a reference from a finished task.
func FromTask(t library.Task) Clip {
	id := t.ClipID
	if id == "" {
		id = t.ID
	}
	title := t.Title
	if title == "" {
		title = "Unknown"
	}
	return Clip{
		ID:       id,
		Title:    title,
		Duration: float64(timecode.Parse(t.Duration)),
		URL:      t.ResultAudioURL,
	}
}

// Coordinator owns the active reference and the working mode. It is safe
// for concurrent use.
type Coordinator struct {
	lck    sync.RWMutex
	active *Clip
	mode   Mode
}

func New() *Coordinator {
	return &Coordinator{mode: ModeCreate}
}

// Select replaces the active reference. When there was no reference and
// the form is in create mode it switches to extend, which is reported by the
// returned value.
func (c *Coordinator) Select(clip Clip) bool {
	c.lck.Lock()
	defer c.lck.Unlock()
	switched := c.active == nil && c.mode == ModeCreate
	clip.ContinueAt = copyFloat(clip.ContinueAt)
	c.active = &clip
	if switched {
		c.mode = ModeExtend
	}
	return switched
}

func (c *Coordinator) Clear() {
	c.lck.Lock()
	defer c.lck.Unlock()
	c.active = nil
}

// UpdateContinueAt overwrites the continuation offset of the active
// reference. It does nothing when there is none.
func (c *Coordinator) UpdateContinueAt(seconds float64) bool {
	c.lck.Lock()
	defer c.lck.Unlock()
	if c.active == nil {
		return false
	}
	if seconds < 0 {
		seconds = 0
	}
	c.active.ContinueAt = &seconds
	return true
}

// Seek sets the continuation offset from a position picked on the waveform
// of the given clip. Positions of other clips are ignored.
func (c *Coordinator) Seek(clipID string, seconds float64) bool {
	c.lck.Lock()
	defer c.lck.Unlock()
	if c.active == nil || c.active.ID != clipID {
		return false
	}
	if seconds < 0 {
		seconds = 0
	}
	c.active.ContinueAt = &seconds
	return true
}

// Current returns a copy of the active reference with its continuation
// offset clamped to the clip duration when that is known.
func (c *Coordinator) Current() (Clip, bool) {
	c.lck.RLock()
	defer c.lck.RUnlock()
	if c.active == nil {
		return Clip{}, false
	}
	clip := *c.active
	if clip.ContinueAt != nil {
		v := clamp(*clip.ContinueAt, clip.Duration)
		clip.ContinueAt = &v
	}
	return clip, true
}

// ContinueSeconds returns the offset to continue from: the chosen offset if
// any, else the clip duration, else zero.
func (c *Coordinator) ContinueSeconds() float64 {
	clip, ok := c.Current()
	if !ok {
		return 0
	}
	if clip.ContinueAt != nil {
		return *clip.ContinueAt
	}
	return clip.Duration
}

// ContinueText returns ContinueSeconds as "m:ss".
func (c *Coordinator) ContinueText() string {
	return timecode.Format(c.ContinueSeconds())
}

// SetContinueText parses "m:ss" text into the continuation offset.
// Malformed text counts as zero.
func (c *Coordinator) SetContinueText(text string) bool {
	return c.UpdateContinueAt(float64(timecode.Parse(text)))
}

func (c *Coordinator) Mode() Mode {
	c.lck.RLock()
	defer c.lck.RUnlock()
	return c.mode
}

func (c *Coordinator) SetMode(m Mode) {
	c.lck.Lock()
	defer c.lck.Unlock()
	c.mode = m
}

func clamp(v, duration float64) float64 {
	if v < 0 {
		return 0
	}
	if duration > 0 && v > duration {
		return duration
	}
	return v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

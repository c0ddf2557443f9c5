package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

const (
	KeyAPIKey  = "suno_api_key"
	KeyPresets = "suno_saved_styles_v2"
)

var ErrInvalidPreset = errors.New("storage: preset title and prompt are required")

// Preset is a saved style text with a display title.
type Preset struct {
	Title  string `json:"title" yaml:"title"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// Apply returns the style after applying the preset. The preset is appended
// to a non-empty style that doesn't contain it yet, otherwise it replaces
// the style.
func (p Preset) Apply(style string) string {
	trimmed := strings.TrimSpace(style)
	if trimmed != "" && !strings.Contains(style, p.Prompt) {
		return fmt.Sprintf("%s, %s", trimmed, p.Prompt)
	}
	return p.Prompt
}

// APIKey returns the stored API key or an empty string if there is none.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	v, err := s.GetSetting(ctx, KeyAPIKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// SetAPIKey stores the API key. An empty key removes it.
func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return s.DeleteSetting(ctx, KeyAPIKey)
	}
	return s.SetSetting(ctx, KeyAPIKey, key)
}

// Presets returns the saved presets. Unreadable data is treated as no
// presets at all.
func (s *Store) Presets(ctx context.Context) ([]Preset, error) {
	v, err := s.GetSetting(ctx, KeyPresets)
	if errors.Is(err, ErrNotFound) {
		return []Preset{}, nil
	}
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		log.Printf("storage: ignoring unreadable presets: %v\n", err)
		return []Preset{}, nil
	}
	presets := []Preset{}
	for _, r := range raw {
		var p Preset
		if err := json.Unmarshal(r, &p); err != nil {
			continue
		}
		p.Title = strings.TrimSpace(p.Title)
		p.Prompt = strings.TrimSpace(p.Prompt)
		if p.Prompt == "" {
			continue
		}
		if p.Title == "" {
			p.Title = "Untitled"
		}
		presets = append(presets, p)
	}
	return presets, nil
}

// SetPresets replaces every saved preset.
func (s *Store) SetPresets(ctx context.Context, presets []Preset) error {
	if presets == nil {
		presets = []Preset{}
	}
	b, err := json.Marshal(presets)
	if err != nil {
		return fmt.Errorf("storage: couldn't marshal presets: %w", err)
	}
	return s.SetSetting(ctx, KeyPresets, string(b))
}

// AddPreset appends a preset and returns the updated list. Title and prompt
// are trimmed and must not be empty.
func (s *Store) AddPreset(ctx context.Context, title, prompt string) ([]Preset, error) {
	p := Preset{Title: strings.TrimSpace(title), Prompt: strings.TrimSpace(prompt)}
	if p.Title == "" || p.Prompt == "" {
		return nil, ErrInvalidPreset
	}
	s.lck.Lock()
	defer s.lck.Unlock()
	presets, err := s.Presets(ctx)
	if err != nil {
		return nil, err
	}
	presets = append(presets, p)
	if err := s.SetPresets(ctx, presets); err != nil {
		return nil, err
	}
	return presets, nil
}

// DeletePreset removes the preset at the given position and returns the
// updated list.
func (s *Store) DeletePreset(ctx context.Context, idx int) ([]Preset, error) {
	s.lck.Lock()
	defer s.lck.Unlock()
	presets, err := s.Presets(ctx)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(presets) {
		return nil, fmt.Errorf("storage: preset %d: %w", idx, ErrNotFound)
	}
	presets = append(presets[:idx:idx], presets[idx+1:]...)
	if err := s.SetPresets(ctx, presets); err != nil {
		return nil, err
	}
	return presets, nil
}

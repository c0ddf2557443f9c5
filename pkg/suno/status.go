package suno

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const (
	EndpointFeed  = "/suno/feed"
	EndpointFetch = "/suno/fetch"
	EndpointWav   = "/suno/act/wav"
)

// Status returns the canonical status of a task. The feed endpoint is tried
// first and the fetch endpoint is used as a fallback. An error means neither
// produced a usable answer, which is not a task failure.
func (c *Client) Status(ctx context.Context, taskID string) (*CanonicalStatus, error) {
	var raw json.RawMessage
	feedErr := c.Call(ctx, http.MethodGet, fmt.Sprintf("%s/%s", EndpointFeed, url.PathEscape(taskID)), nil, &raw)
	if feedErr == nil {
		st, err := NormalizeFeed(taskID, raw)
		if err == nil {
			return st, nil
		}
		feedErr = err
	}
	c.log("suno: feed failed for %s, trying fetch: %v", taskID, feedErr)

	raw = nil
	if err := c.Call(ctx, http.MethodGet, fmt.Sprintf("%s/%s", EndpointFetch, url.PathEscape(taskID)), nil, &raw); err != nil {
		return nil, fmt.Errorf("suno: couldn't get status of %s: %w", taskID, err)
	}
	st, err := NormalizeFetch(raw)
	if err != nil {
		return nil, fmt.Errorf("suno: couldn't get status of %s: %w", taskID, err)
	}
	return st, nil
}

// Clip looks up a single clip by its identifier through the feed endpoint.
func (c *Client) Clip(ctx context.Context, clipID string) (*Clip, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, http.MethodGet, fmt.Sprintf("%s/%s", EndpointFeed, url.PathEscape(clipID)), nil, &raw); err != nil {
		return nil, fmt.Errorf("suno: couldn't get clip %s: %w", clipID, err)
	}
	clips, err := feedClips(raw)
	if err != nil {
		return nil, fmt.Errorf("suno: couldn't get clip %s: %w", clipID, err)
	}
	return &clips[0], nil
}

// Wav returns a direct WAV URL for the clip, or an empty string if the
// service has none.
func (c *Client) Wav(ctx context.Context, clipID string) (string, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, http.MethodGet, fmt.Sprintf("%s/%s", EndpointWav, url.PathEscape(clipID)), nil, &raw); err != nil {
		return "", fmt.Errorf("suno: couldn't get wav of %s: %w", clipID, err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", nil
	}
	if u := jsonString(obj["url"]); u != "" {
		return u, nil
	}
	return jsonString(obj["data"]), nil
}

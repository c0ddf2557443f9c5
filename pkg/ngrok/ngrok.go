package ngrok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// BinPath is the path to the ngrok binary
var BinPath = "ngrok"

// APIURL is the local ngrok agent endpoint listing active tunnels
var APIURL = "http://localhost:4040/api/tunnels"

type tunnelsResponse struct {
	Tunnels []struct {
		Name      string `json:"name"`
		PublicURL string `json:"public_url"`
		Proto     string `json:"proto"`
		Config    struct {
			Addr string `json:"addr"`
		} `json:"config"`
	} `json:"tunnels"`
}

// Run starts an http tunnel to the given local port and returns its public
// url. The tunnel is closed when the context is done or cancel is called.
func Run(ctx context.Context, port string) (string, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		cmd := exec.CommandContext(ctx, BinPath, "http", port)
		data, err := cmd.CombinedOutput()
		if err != nil && ctx.Err() == nil {
			log.Println(fmt.Errorf("ngrok: %w: %s", err, string(data)))
		}
	}()
	u, err := Lookup(ctx, port, 30, time.Second)
	if err != nil {
		cancel()
		return "", nil, err
	}
	return u, cancel, nil
}

// Lookup asks the ngrok agent for the public url tunneling to the port,
// retrying while the agent starts.
func Lookup(ctx context.Context, port string, attempts int, wait time.Duration) (string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("ngrok: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
		u, err := lookup(ctx, client, port)
		if err != nil {
			lastErr = err
			continue
		}
		if u != "" {
			return u, nil
		}
		lastErr = fmt.Errorf("ngrok: no tunnel for port %s", port)
	}
	return "", lastErr
}

func lookup(ctx context.Context, client *http.Client, port string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, APIURL, nil)
	if err != nil {
		return "", fmt.Errorf("ngrok: couldn't create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ngrok: couldn't reach agent: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ngrok: couldn't read response: %w", err)
	}
	var tr tunnelsResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("ngrok: couldn't unmarshal response (%s): %w", string(data), err)
	}
	for _, t := range tr.Tunnels {
		addr := t.Config.Addr
		if idx := strings.LastIndex(addr, ":"); idx >= 0 {
			addr = addr[idx+1:]
		}
		if addr != port {
			continue
		}
		if strings.HasPrefix(t.PublicURL, "tcp://") {
			return strings.Replace(t.PublicURL, "tcp://", "http://", 1), nil
		}
		return t.PublicURL, nil
	}
	return "", nil
}

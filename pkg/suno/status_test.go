package suno

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name    string
		feed    func(w http.ResponseWriter)
		fetch   func(w http.ResponseWriter)
		want    State
		wantErr bool
	}{
		{
			name: "feed",
			feed: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`[{"id":"a","status":"complete"}]`))
			},
			want: StateSuccess,
		},
		{
			name: "feed empty falls back",
			feed: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`[]`))
			},
			fetch: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{"code":"success","data":{"task_id":"t1","status":"IN_PROGRESS","data":[]}}`))
			},
			want: StateRunning,
		},
		{
			name: "feed error falls back",
			feed: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusNotFound)
			},
			fetch: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{"code":"success","data":{"task_id":"t1","status":"FAILED","fail_reason":"x"}}`))
			},
			want: StateFailed,
		},
		{
			name: "both fail",
			feed: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusBadGateway)
			},
			fetch: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.URL.Path == EndpointFeed+"/t1" && tt.feed != nil:
					tt.feed(w)
				case r.URL.Path == EndpointFetch+"/t1" && tt.fetch != nil:
					tt.fetch(w)
				default:
					t.Errorf("unexpected request %s", r.URL.Path)
					w.WriteHeader(http.StatusInternalServerError)
				}
			})
			st, err := c.Status(context.Background(), "t1")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Status() err = nil; want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Status() err = %v; want nil", err)
			}
			if st.Status != tt.want {
				t.Fatalf("Status() = %q; want %q", st.Status, tt.want)
			}
		})
	}
}

func TestWav(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"url":"https://cdn/a.wav"}`, "https://cdn/a.wav"},
		{`{"data":"https://cdn/b.wav"}`, "https://cdn/b.wav"},
		{`{"code":"success"}`, ""},
	}
	for _, tt := range tests {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, EndpointWav+"/") {
				t.Errorf("path = %q; want prefix %q", r.URL.Path, EndpointWav)
			}
			_, _ = w.Write([]byte(tt.body))
		})
		got, err := c.Wav(context.Background(), "c1")
		if err != nil {
			t.Fatalf("Wav() err = %v; want nil", err)
		}
		if got != tt.want {
			t.Fatalf("Wav() = %q; want %q", got, tt.want)
		}
	}
}

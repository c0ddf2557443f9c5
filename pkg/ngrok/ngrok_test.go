package ngrok

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"tunnels":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"tunnels":[
			{"public_url":"https://other.ngrok.app","config":{"addr":"http://localhost:9000"}},
			{"public_url":"https://panel.ngrok.app","config":{"addr":"http://localhost:8080"}}
		]}`))
	}))
	defer srv.Close()

	orig := APIURL
	APIURL = srv.URL
	defer func() { APIURL = orig }()

	got, err := Lookup(context.Background(), "8080", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("Lookup() err = %v; want nil", err)
	}
	if got != "https://panel.ngrok.app" {
		t.Fatalf("Lookup() = %q; want %q", got, "https://panel.ngrok.app")
	}
	if _, err := Lookup(context.Background(), "7000", 2, time.Millisecond); err == nil {
		t.Fatal("Lookup(7000) succeeded; want error")
	}
}

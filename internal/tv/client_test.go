package tv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goodtune/tvbudget/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.TVConfig{Host: srv.URL, Timeout: "1s"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestCurrentVideo(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{"youtube watch", 200, `{"app":{"title":"YouTube","url":"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42"}}`, "dQw4w9WgXcQ", false},
		{"youtube short link", 200, `{"app":{"name":"YouTube","url":"https://youtu.be/abc123?si=x"}}`, "abc123", false},
		{"flat payload", 200, `{"title":"YouTube","url":"youtube.com/shorts/Zx_9-a"}`, "Zx_9-a", false},
		{"other app", 200, `{"app":{"title":"Netflix","url":"https://netflix.com/title/1"}}`, "", false},
		{"youtube home screen", 200, `{"app":{"title":"YouTube","url":""}}`, "", false},
		{"no app", 200, `{}`, "", false},
		{"server error", 500, `oops`, "", true},
		{"garbage", 200, `not json`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != defaultStatusPath {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			got, err := c.CurrentVideo(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("CurrentVideo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CurrentVideo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeviceInfo(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"name":"Living Room","version":"2.0.25","device":{"modelName":"QA55LS03","PowerState":"on"}}`))
	}))

	info, err := c.DeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("DeviceInfo failed: %v", err)
	}
	if info.Name != "Living Room" || info.Device.ModelName != "QA55LS03" || info.Device.PowerState != "on" {
		t.Errorf("unexpected device info %+v", info)
	}
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient(config.TVConfig{}); err == nil {
		t.Error("expected error without host")
	}

	c, err := NewClient(config.TVConfig{Host: "192.168.1.20", Port: 8002})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.baseURL != "http://192.168.1.20:8002" {
		t.Errorf("unexpected base URL %s", c.baseURL)
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?feature=share&v=abc_DEF-1", "abc_DEF-1"},
		{"youtube.com/watch?v=abc&list=PL1", "abc"},
		{"https://youtu.be/abc123", "abc123"},
		{"https://youtu.be/abc123?t=10", "abc123"},
		{"https://www.youtube.com/shorts/short1", "short1"},
		{"https://www.youtube.com/embed/emb1?autoplay=1", "emb1"},
		{"https://www.youtube.com/live/live1", "live1"},
		{"https://www.youtube.com/", ""},
		{"https://www.youtube.com/watch", ""},
		{"https://vimeo.com/12345", ""},
		{"https://youtu.be/bad%20id", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractVideoID(tt.url); got != tt.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

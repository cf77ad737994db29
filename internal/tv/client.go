// Package tv polls a Samsung TV's REST API for the foreground app and
// extracts the YouTube video being played.
package tv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goodtune/tvbudget/internal/config"
)

const (
	defaultPort       = 8001
	defaultStatusPath = "/api/v2/applications/status"
	deviceInfoPath    = "/api/v2/"
	defaultTimeout    = 3 * time.Second
	maxBodyBytes      = 1 << 20
)

// AppStatus is the foreground application reported by the TV
type AppStatus struct {
	Title string `json:"title"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

type statusResponse struct {
	App *AppStatus `json:"app"`
	AppStatus
}

// DeviceInfo is the subset of GET /api/v2/ used for connection checks
type DeviceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Device  struct {
		Name       string `json:"name"`
		ModelName  string `json:"modelName"`
		PowerState string `json:"PowerState"`
		OS         string `json:"OS"`
	} `json:"device"`
}

// Client talks to the TV
type Client struct {
	baseURL    string
	statusPath string
	httpClient *http.Client
}

// NewClient creates a TV client from configuration
func NewClient(cfg config.TVConfig) (*Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("tv.host is required")
	}

	base := host
	if !strings.Contains(host, "://") {
		port := cfg.Port
		if port <= 0 {
			port = defaultPort
		}
		base = fmt.Sprintf("http://%s:%d", host, port)
	}

	statusPath := cfg.StatusPath
	if statusPath == "" {
		statusPath = defaultStatusPath
	}

	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		statusPath: statusPath,
		httpClient: &http.Client{Timeout: config.MustDuration(cfg.Timeout, defaultTimeout)},
	}, nil
}

// Status fetches the foreground app. A TV showing no app yields an empty status.
func (c *Client) Status(ctx context.Context) (AppStatus, error) {
	var resp statusResponse
	if err := c.getJSON(ctx, c.statusPath, &resp); err != nil {
		return AppStatus{}, err
	}
	if resp.App != nil {
		return *resp.App, nil
	}
	return resp.AppStatus, nil
}

// CurrentVideo returns the YouTube video id on screen, or "" when nothing
// is playing. Errors mean the TV could not be asked, not that it is idle.
func (c *Client) CurrentVideo(ctx context.Context) (string, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return "", err
	}
	if !IsYouTube(status) {
		return "", nil
	}
	return ExtractVideoID(status.URL), nil
}

// DeviceInfo fetches the TV's identity
func (c *Client) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	var info DeviceInfo
	err := c.getJSON(ctx, deviceInfoPath, &info)
	return info, err
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("tv request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tv request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("tv request: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tv request: %s: http %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("tv request: decode %s: %w", path, err)
	}
	return nil
}

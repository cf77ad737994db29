// Package youtube fetches video metadata from the YouTube Data API.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goodtune/tvbudget/internal/config"
)

const (
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// ErrNoAPIKey is returned when metadata is requested without credentials
var ErrNoAPIKey = errors.New("youtube api key not configured")

// Metadata is the snippet of a video that drives classification
type Metadata struct {
	Title       string
	Description string
	Channel     string
	CategoryID  string
}

// Empty reports whether no metadata was found
func (m Metadata) Empty() bool {
	return m.Title == "" && m.Description == ""
}

// Fetcher looks up video metadata
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (Metadata, error)
}

// Client is a YouTube Data API v3 client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client from configuration
func NewClient(cfg config.YouTubeConfig) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    base,
		httpClient: &http.Client{Timeout: config.MustDuration(cfg.Timeout, defaultTimeout)},
	}
}

type videosResponse struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			CategoryID   string `json:"categoryId"`
		} `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch returns the snippet for videoID. An unknown video yields empty
// metadata and no error.
func (c *Client) Fetch(ctx context.Context, videoID string) (Metadata, error) {
	if c.apiKey == "" {
		return Metadata{}, ErrNoAPIKey
	}
	if videoID == "" {
		return Metadata{}, nil
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", videoID)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("youtube request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("youtube request: %w", redactKey(err, c.apiKey))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Metadata{}, fmt.Errorf("youtube request: read body: %w", err)
	}

	var parsed videosResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Metadata{}, fmt.Errorf("youtube request: http %d", resp.StatusCode)
		}
		return Metadata{}, fmt.Errorf("youtube request: decode response: %w", err)
	}
	if parsed.Error != nil {
		return Metadata{}, fmt.Errorf("youtube request: api error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("youtube request: http %d", resp.StatusCode)
	}
	if len(parsed.Items) == 0 {
		return Metadata{}, nil
	}

	s := parsed.Items[0].Snippet
	return Metadata{
		Title:       s.Title,
		Description: s.Description,
		Channel:     s.ChannelTitle,
		CategoryID:  s.CategoryID,
	}, nil
}

// redactKey keeps the API key out of logged url.Error values
func redactKey(err error, key string) error {
	var urlErr *url.Error
	if key == "" || !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{
		Op:  urlErr.Op,
		URL: strings.ReplaceAll(urlErr.URL, key, "REDACTED"),
		Err: urlErr.Err,
	}
}

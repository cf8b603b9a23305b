package ytvideodata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type VideoData struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailUrl string `json:"thumbnail_url"`
}

type Config struct {
	// OEmbedURL is the oEmbed endpoint, watch urls are passed in its url query param.
	OEmbedURL string
	// WatchURL is prefixed to the video id to fetch the public page.
	WatchURL     string
	ThumbnailURL string
	HTTPClient   *http.Client
}

func DefaultConfig() Config {
	return Config{
		OEmbedURL:    "https://www.youtube.com/oembed",
		WatchURL:     "https://www.youtube.com/watch?v=",
		ThumbnailURL: "https://i.ytimg.com/vi/%s/hqdefault.jpg",
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &Client{cfg: cfg}
}

// Get resolves video metadata through oEmbed and falls back to scraping the watch page
// for videos that cannot be embedded.
func (c *Client) Get(ctx context.Context, videoId string) (*VideoData, error) {
	videoData, err := c.getWithEmbed(ctx, videoId)
	if err != nil {
		if !errors.Is(err, ErrVideoNotEmbeddable) {
			return nil, fmt.Errorf("failed to get video data with embed: %w", err)
		}

		videoData, err = c.getFromPage(ctx, videoId)
		if err != nil {
			return nil, fmt.Errorf("failed to get video data from page: %w", err)
		}
	}

	return videoData, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	return c.cfg.HTTPClient.Do(req)
}

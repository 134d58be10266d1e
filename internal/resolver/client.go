// Package resolver calls the local resolution service to turn a watch-page URL into
// directly fetchable formats.
package resolver

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

	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/format"
	"github.com/streamsave/streamsave-go/internal/metrics"
	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/validation"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

const (
	videoInfoPath   = "/get-video-info"
	maxResponseSize = 4 << 20
)

// Resolver resolves watch-page URLs.
type Resolver interface {
	Resolve(ctx context.Context, watchURL string) (*models.VideoInfo, error)
}

// Client is an HTTP Resolver. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a client using the given HTTP client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Resolve validates watchURL, fetches its formats from the service and normalizes them.
// Invalid URLs fail with ErrInvalidInput before any network call; transport and service
// failures fail with ErrResolutionFailed. Nothing is retried.
func (c *Client) Resolve(ctx context.Context, watchURL string) (*models.VideoInfo, error) {
	videoID, err := validation.ExtractVideoID(watchURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := c.fetch(ctx, watchURL)
	if err != nil {
		metrics.RecordResolution("client", "failure", 0, 0)
		logger.Log.Warn("Resolution failed",
			zap.String("videoId", videoID),
			zap.Error(err),
		)
		return nil, err
	}

	info.VideoID = videoID
	metrics.RecordResolution("client", "success", time.Since(start).Seconds(), len(info.Formats))

	return info, nil
}

func (c *Client) fetch(ctx context.Context, watchURL string) (*models.VideoInfo, error) {
	endpoint := c.baseURL + videoInfoPath + "?url=" + url.QueryEscape(watchURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, models.NewError(models.ErrResolutionFailed, "failed to build resolution request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewError(models.ErrTimedOut, "resolution service timed out", err)
		}
		return nil, models.NewError(models.ErrResolutionFailed, "resolution service unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, models.NewError(models.ErrResolutionFailed, "failed to read resolution response", err)
	}

	var payload models.VideoInfoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, models.NewError(models.ErrResolutionFailed, "malformed resolution response",
			fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}

	if !payload.Success || resp.StatusCode != http.StatusOK {
		msg := payload.Error
		if msg == "" {
			msg = fmt.Sprintf("resolution service returned status %d", resp.StatusCode)
		}
		return nil, models.NewError(models.ErrResolutionFailed, msg, nil)
	}

	raw := make([]models.RawFormat, 0, len(payload.Formats))
	for _, f := range payload.Formats {
		raw = append(raw, f.Raw())
	}

	return &models.VideoInfo{
		Title:     payload.Title,
		Author:    payload.Author,
		Thumbnail: payload.Thumbnail,
		Formats:   format.Normalize(raw),
	}, nil
}

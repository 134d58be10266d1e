// Package service provides the business logic behind the resolution service.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/format"
	"github.com/streamsave/streamsave-go/internal/metrics"
	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/validation"
	"github.com/streamsave/streamsave-go/internal/youtube"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

// Extractor fetches raw stream variants for a video.
type Extractor interface {
	Extract(ctx context.Context, videoID string) (*youtube.Extraction, error)
}

// ResolutionStore caches resolution results by video id.
type ResolutionStore interface {
	Get(ctx context.Context, videoID string) (*models.VideoInfo, error)
	Set(ctx context.Context, info *models.VideoInfo) error
}

// ResolutionService turns a watch-page URL into a normalized VideoInfo.
type ResolutionService struct {
	extractor Extractor
	cache     ResolutionStore
}

// NewResolutionService creates a new ResolutionService instance.
func NewResolutionService(extractor Extractor) *ResolutionService {
	return &ResolutionService{extractor: extractor}
}

// WithCache enables result caching.
func (s *ResolutionService) WithCache(cache ResolutionStore) *ResolutionService {
	s.cache = cache
	return s
}

// GetVideoInfo validates rawURL, extracts its formats and normalizes them. Invalid URLs
// fail with ErrInvalidInput; extraction failures and videos without any usable format
// fail with ErrResolutionFailed.
func (s *ResolutionService) GetVideoInfo(ctx context.Context, rawURL string) (*models.VideoInfo, error) {
	videoID, err := validation.ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	if info := s.cached(ctx, videoID); info != nil {
		return info, nil
	}

	start := time.Now()
	extraction, err := s.extractor.Extract(ctx, videoID)
	if err != nil {
		metrics.RecordResolution("server", "failure", time.Since(start).Seconds(), 0)
		logger.Log.Error("Failed to extract video",
			zap.String("videoId", videoID),
			zap.Error(err),
		)
		return nil, models.NewError(models.ErrResolutionFailed, "failed to resolve video", err)
	}

	info := &models.VideoInfo{
		VideoID:   videoID,
		Title:     extraction.Title,
		Author:    extraction.Author,
		Thumbnail: extraction.Thumbnail,
		Formats:   format.Normalize(extraction.Formats),
	}
	if info.Thumbnail == "" {
		info.Thumbnail = validation.ThumbnailURL(videoID)
	}

	if len(info.Formats) == 0 {
		metrics.RecordResolution("server", "failure", time.Since(start).Seconds(), 0)
		return nil, models.NewError(models.ErrResolutionFailed, "no downloadable formats found", nil)
	}

	metrics.RecordResolution("server", "success", time.Since(start).Seconds(), len(info.Formats))
	logger.Log.Info("Video resolved",
		zap.String("videoId", videoID),
		zap.Int("formats", len(info.Formats)),
		zap.Duration("elapsed", time.Since(start)),
	)

	s.store(ctx, info)
	return info, nil
}

func (s *ResolutionService) cached(ctx context.Context, videoID string) *models.VideoInfo {
	if s.cache == nil {
		return nil
	}
	info, err := s.cache.Get(ctx, videoID)
	if err != nil {
		logger.Log.Warn("Resolution cache lookup failed",
			zap.String("videoId", videoID),
			zap.Error(err),
		)
		return nil
	}
	return info
}

func (s *ResolutionService) store(ctx context.Context, info *models.VideoInfo) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, info); err != nil {
		logger.Log.Warn("Failed to cache resolution",
			zap.String("videoId", info.VideoID),
			zap.Error(err),
		)
	}
}

package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/format"
	"github.com/streamsave/streamsave-go/internal/helper"
	"github.com/streamsave/streamsave-go/internal/host"
	"github.com/streamsave/streamsave-go/internal/metrics"
	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/stats"
	"github.com/streamsave/streamsave-go/internal/validation"
)

const publishTimeout = 5 * time.Second

type plannedDownload struct {
	req      DownloadVideo
	url      string
	filename string
	platform models.Platform
}

// download resolves the requested URL when its platform needs it, then hands a direct
// URL and a sanitized filename to the host.
func (c *Coordinator) download(env envelope, r DownloadVideo) {
	if c.deps.Downloader == nil {
		c.respond(env, failure(models.NewError(models.ErrDispatchFailed, "no downloader configured", nil)))
		return
	}

	videoID, err := validation.ExtractVideoID(r.VideoURL)
	if err != nil {
		c.startDownload(env, plannedDownload{
			req:      r,
			url:      r.VideoURL,
			filename: directFilename(r.Filename, r.VideoURL),
			platform: models.PlatformGeneric,
		})
		return
	}

	if info := c.deps.Registry.GetResolution(r.TabID); info != nil && info.VideoID == videoID {
		f, ok := info.FindFormat(r.Quality)
		if !ok {
			c.respond(env, failure(unavailableQuality(r.Quality)))
			return
		}
		c.startDownload(env, resolvedPlan(r, info, f))
		return
	}

	c.requestResolution(r.TabID, videoID, r.Quality, func(msg helper.Message, err error) {
		if err != nil {
			c.respond(env, failure(err))
			return
		}
		c.deps.Registry.RecordResolution(r.TabID, videoID, msg.Info)

		f := msg.Format
		if f == nil {
			picked, ok := msg.Info.FindFormat(r.Quality)
			if !ok {
				c.respond(env, failure(unavailableQuality(r.Quality)))
				return
			}
			f = &picked
		}
		c.startDownload(env, resolvedPlan(r, msg.Info, *f))
	})
}

func unavailableQuality(quality string) error {
	quality = strings.TrimSpace(quality)
	if quality == "" || strings.EqualFold(quality, models.QualityAuto) {
		return models.NewError(models.ErrResolutionFailed, "no downloadable format", nil)
	}
	return models.NewError(models.ErrResolutionFailed, fmt.Sprintf("quality %s is not available", quality), nil)
}

func resolvedPlan(r DownloadVideo, info *models.VideoInfo, f models.ResolvedFormat) plannedDownload {
	title := r.Filename
	if strings.TrimSpace(title) == "" {
		title = info.Title
	}
	container := f.Container
	if container == "" {
		container = format.Container(f.Raw())
	}
	return plannedDownload{
		req:      r,
		url:      f.DirectURL,
		filename: host.DownloadFilename(title, container),
		platform: models.PlatformYouTube,
	}
}

// directFilename names a download of an already-direct URL, taking the extension from
// the URL path.
func directFilename(title, rawURL string) string {
	ext := format.VideoContainer
	base := ""
	if u, err := url.Parse(rawURL); err == nil {
		if e := strings.TrimPrefix(path.Ext(u.Path), "."); e != "" {
			ext = strings.ToLower(e)
		}
		base = strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	}
	if strings.TrimSpace(title) != "" {
		base = strings.TrimSuffix(title, "."+ext)
	}
	return host.DownloadFilename(base, ext)
}

// startDownload runs the transfer off the loop. Counters and the download event are
// updated before the reply is posted back.
func (c *Coordinator) startDownload(env envelope, plan plannedDownload) {
	ctx := c.ctx
	go func() {
		id, err := c.deps.Downloader.Download(ctx, host.DownloadRequest{URL: plan.url, Filename: plan.filename})
		if err != nil {
			if !models.IsKind(err, models.ErrDownloadRejected) {
				err = models.NewError(models.ErrDownloadRejected, "download rejected", err)
			}
			metrics.RecordDownload("rejected")
			c.enqueue(func() { c.respond(env, failure(err)) })
			return
		}

		metrics.RecordDownload("accepted")
		c.afterDownload(ctx, plan, id)
		c.enqueue(func() { c.respond(env, Response{Success: true, DownloadID: id}) })
	}()
}

func (c *Coordinator) afterDownload(ctx context.Context, plan plannedDownload, downloadID string) {
	if _, err := c.deps.Counters.Increment(ctx, stats.TotalDownloads); err != nil {
		c.log.Warn("Failed to update download counter", zap.Error(err))
	}

	if c.deps.Publisher == nil {
		return
	}
	event := &models.DownloadEvent{
		ID:         uuid.New(),
		DownloadID: downloadID,
		TabID:      plan.req.TabID,
		Filename:   plan.filename,
		SourceURL:  plan.req.VideoURL,
		Quality:    plan.req.Quality,
		Platform:   plan.platform,
		IssuedAt:   time.Now().UTC(),
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := c.deps.Publisher.PublishDownload(pubCtx, event); err != nil {
		c.log.Warn("Failed to publish download event",
			zap.String("downloadId", downloadID),
			zap.Error(err),
		)
	}
}

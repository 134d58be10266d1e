package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

const invalidURLMessage = "Invalid YouTube URL"

// VideoInfoService resolves a watch-page URL.
type VideoInfoService interface {
	GetVideoInfo(ctx context.Context, rawURL string) (*models.VideoInfo, error)
}

// VideoInfoHandler serves GET /get-video-info.
type VideoInfoHandler struct {
	service VideoInfoService
}

// NewVideoInfoHandler creates a new VideoInfoHandler instance.
func NewVideoInfoHandler(service VideoInfoService) *VideoInfoHandler {
	return &VideoInfoHandler{
		service: service,
	}
}

// GetVideoInfo resolves the url query parameter into title, author, thumbnail and the
// normalized format list.
func (h *VideoInfoHandler) GetVideoInfo(c *gin.Context) {
	rawURL := c.Query("url")

	info, err := h.service.GetVideoInfo(c.Request.Context(), rawURL)
	if err != nil {
		h.handleError(c, rawURL, err)
		return
	}

	c.JSON(http.StatusOK, models.VideoInfoResponse{
		Success:   true,
		Title:     info.Title,
		Author:    info.Author,
		Thumbnail: info.Thumbnail,
		Formats:   info.Formats,
	})
}

func (h *VideoInfoHandler) handleError(c *gin.Context, rawURL string, err error) {
	if models.IsKind(err, models.ErrInvalidInput) {
		logger.Log.Warn("Rejected video info request",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, models.VideoInfoResponse{
			Success: false,
			Error:   invalidURLMessage,
		})
		return
	}

	logger.Log.Error("Failed to resolve video",
		zap.String("url", rawURL),
		zap.Error(err),
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, models.VideoInfoResponse{
		Success: false,
		Error:   err.Error(),
	})
}

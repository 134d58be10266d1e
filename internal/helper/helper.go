// Package helper implements the privileged context that performs YouTube resolution on
// behalf of the coordinator. Requests arrive as process-youtube messages and results
// leave asynchronously as youtube-processed or youtube-error events.
package helper

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/resolver"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

// Message verbs.
const (
	VerbProcessYouTube   = "process-youtube"
	VerbYouTubeProcessed = "youtube-processed"
	VerbYouTubeError     = "youtube-error"
)

// ErrBusy is returned when the helper inbox is full.
var ErrBusy = errors.New("helper context busy")

// Message is exchanged between the coordinator and the helper.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Message struct {
	Verb      string
	RequestID string
	URL       string
	Quality   string
	Info      *models.VideoInfo
	Format    *models.ResolvedFormat
	Error     string
	Kind      models.ErrorKind
}

// Helper is the helper context's event loop.
type Helper struct {
	resolver resolver.Resolver
	inbox    chan Message
	events   chan Message
	log      *zap.Logger
	wg       sync.WaitGroup
}

// New creates a helper resolving through r.
func New(r resolver.Resolver, buffer int) *Helper {
	if buffer <= 0 {
		buffer = 16
	}
	return &Helper{
		resolver: r,
		inbox:    make(chan Message, buffer),
		events:   make(chan Message, buffer),
		log:      logger.Named("helper"),
	}
}

// Post enqueues a process-youtube request without blocking.
func (h *Helper) Post(msg Message) error {
	select {
	case h.inbox <- msg:
		return nil
	default:
		return ErrBusy
	}
}

// Events delivers youtube-processed and youtube-error messages.
func (h *Helper) Events() <-chan Message {
	return h.events
}

// Run processes requests until ctx is cancelled. Each resolution runs concurrently so a
// slow video never delays another.
func (h *Helper) Run(ctx context.Context) {
	defer h.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.inbox:
			if msg.Verb != VerbProcessYouTube {
				h.log.Warn("Ignoring unknown helper message", zap.String("verb", msg.Verb))
				continue
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.emit(ctx, h.process(ctx, msg))
			}()
		}
	}
}

func (h *Helper) process(ctx context.Context, msg Message) Message {
	info, err := h.resolver.Resolve(ctx, msg.URL)
	if err != nil {
		h.log.Debug("Resolution failed",
			zap.String("requestId", msg.RequestID),
			zap.String("url", msg.URL),
			zap.Error(err),
		)
		return Message{
			Verb:      VerbYouTubeError,
			RequestID: msg.RequestID,
			URL:       msg.URL,
			Error:     err.Error(),
			Kind:      models.KindOf(err),
		}
	}

	out := Message{
		Verb:      VerbYouTubeProcessed,
		RequestID: msg.RequestID,
		URL:       msg.URL,
		Quality:   msg.Quality,
		Info:      info,
	}
	if f, ok := info.FindFormat(msg.Quality); ok {
		out.Format = &f
	}
	return out
}

func (h *Helper) emit(ctx context.Context, msg Message) {
	select {
	case h.events <- msg:
	case <-ctx.Done():
	}
}

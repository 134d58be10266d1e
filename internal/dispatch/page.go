package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/metrics"
	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/scanner"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

const pageInboxSize = 8

// PageLoader produces a snapshot of the document shown at rawURL.
type PageLoader interface {
	Load(ctx context.Context, rawURL string) (*scanner.Page, error)
}

type pageMsg struct {
	req   Request
	reply *reply
}

// pageContext is the event loop scoped to one tab's document. It scans on load and
// pushes the result to the coordinator, then answers ping, scan and reload requests
// one at a time.
type pageContext struct {
	tabID   int
	url     string
	loader  PageLoader
	scanner *scanner.Scanner
	notify  func(Request)
	inbox   chan pageMsg
	cancel  context.CancelFunc
	log     *zap.Logger
}

func startPage(parent context.Context, tabID int, url string, loader PageLoader, s *scanner.Scanner, notify func(Request)) *pageContext {
	ctx, cancel := context.WithCancel(parent)
	p := &pageContext{
		tabID:   tabID,
		url:     url,
		loader:  loader,
		scanner: s,
		notify:  notify,
		inbox:   make(chan pageMsg, pageInboxSize),
		cancel:  cancel,
		log:     logger.Named("page").With(zap.Int("tabId", tabID)),
	}
	go p.run(ctx)
	return p
}

// post enqueues a request without blocking the caller.
func (p *pageContext) post(m pageMsg) bool {
	select {
	case p.inbox <- m:
		return true
	default:
		return false
	}
}

func (p *pageContext) stop() {
	p.cancel()
}

func (p *pageContext) run(ctx context.Context) {
	page := p.load(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-p.inbox:
			page = p.handle(ctx, m, page)
		}
	}
}

func (p *pageContext) handle(ctx context.Context, m pageMsg, page *scanner.Page) *scanner.Page {
	switch m.req.(type) {
	case Ping:
		if page == nil {
			m.reply.deliver(failure(errNotInjected))
			return page
		}
		m.reply.deliver(Response{Success: true, Active: true})

	case ScanForVideos:
		if page == nil {
			m.reply.deliver(failure(errNotInjected))
			return page
		}
		m.reply.deliver(Response{Success: true, Videos: p.scan(page)})

	case ReloadTab:
		page = p.load(ctx)
		if page == nil {
			m.reply.deliver(failure(errNotInjected))
			return page
		}
		m.reply.deliver(Response{Success: true})

	default:
		m.reply.deliver(failure(models.NewError(models.ErrDispatchFailed, "unsupported page request", nil)))
	}
	return page
}

// load fetches a fresh snapshot and announces its candidates. It returns nil when the
// document could not be loaded.
func (p *pageContext) load(ctx context.Context) *scanner.Page {
	page, err := p.loader.Load(ctx, p.url)
	if err != nil {
		p.log.Warn("Failed to load page", zap.String("url", p.url), zap.Error(err))
		return nil
	}
	p.notify(VideosDetected{TabID: p.tabID, Videos: p.scan(page)})
	return page
}

func (p *pageContext) scan(page *scanner.Page) []models.VideoCandidate {
	videos := p.scanner.Scan(page)

	platforms := make([]string, 0, len(videos))
	for _, v := range videos {
		platforms = append(platforms, string(v.Platform))
	}
	metrics.RecordScan(platforms)

	return videos
}

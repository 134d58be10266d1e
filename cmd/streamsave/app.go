package main

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/cache"
	"github.com/streamsave/streamsave-go/internal/config"
	"github.com/streamsave/streamsave-go/internal/dispatch"
	"github.com/streamsave/streamsave-go/internal/helper"
	"github.com/streamsave/streamsave-go/internal/host"
	"github.com/streamsave/streamsave-go/internal/registry"
	"github.com/streamsave/streamsave-go/internal/resolver"
	"github.com/streamsave/streamsave-go/internal/scanner"
	"github.com/streamsave/streamsave-go/internal/service"
	"github.com/streamsave/streamsave-go/internal/stats"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

// cliTabID is the single tab the CLI drives.
const cliTabID = 1

// app holds the running contexts for one CLI invocation.
type app struct {
	cfg         *config.Config
	resolver    *resolver.Client
	coordinator *dispatch.Coordinator
	counters    stats.Counters
	badge       *host.MemoryBadge

	cancel  context.CancelFunc
	done    chan struct{}
	closers []func()
}

// appOptions override collaborators in tests.
type appOptions struct {
	fs         afero.Fs
	httpClient *http.Client
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) *app {
	a := &app{
		cfg:      cfg,
		resolver: resolver.NewClient(cfg.Resolver.BaseURL, cfg.Resolver.Timeout),
		badge:    host.NewMemoryBadge(),
		counters: stats.NewMemoryCounters(),
		done:     make(chan struct{}),
	}

	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Log.Warn("Redis unavailable, counters are not persisted", zap.Error(err))
		} else {
			a.counters = stats.NewRedisCounters(client)
			a.closers = append(a.closers, func() { closeRedis(client) })
		}
	}

	var publisher dispatch.EventPublisher
	if cfg.RabbitMQ.Enabled {
		p, err := service.NewDownloadPublisher(&cfg.RabbitMQ)
		if err != nil {
			logger.Log.Warn("RabbitMQ unavailable, download events are not published", zap.Error(err))
		} else {
			publisher = p
			a.closers = append(a.closers, func() { _ = p.Close() })
		}
	}

	h := helper.New(a.resolver, 0)
	a.coordinator = dispatch.New(
		dispatch.Options{
			ResolveTimeout: cfg.Dispatch.ResolveTimeout,
			ScanTimeout:    cfg.Dispatch.ScanTimeout,
		},
		dispatch.Dependencies{
			Registry:   registry.New(nil, a.badge),
			Scanner:    scanner.New(),
			Pages:      scanner.NewLoader(opts.httpClient),
			Helper:     h,
			Downloader: host.NewFileDownloader(opts.fs, cfg.Download.Dir, opts.httpClient),
			Counters:   a.counters,
			Publisher:  publisher,
		},
	)

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	helperDone := make(chan struct{})
	go func() {
		h.Run(runCtx)
		close(helperDone)
	}()
	go func() {
		_ = a.coordinator.Run(runCtx)
		<-helperDone
		close(a.done)
	}()

	return a
}

// Close stops the contexts and releases connections.
func (a *app) Close() {
	a.cancel()
	<-a.done
	for _, c := range a.closers {
		c()
	}
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.Log.Warn("Failed to close Redis client", zap.Error(err))
	}
}

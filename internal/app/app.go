package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/pluginmedia/internal/adapter/fsadapter"
	"github.com/jgivc/pluginmedia/internal/adapter/mdadapter"
	"github.com/jgivc/pluginmedia/internal/adapter/tpladapter"
	"github.com/jgivc/pluginmedia/internal/config"
	httphandler "github.com/jgivc/pluginmedia/internal/handler/http"
	"github.com/jgivc/pluginmedia/internal/repository/counter"
	"github.com/jgivc/pluginmedia/internal/service/asset"
	srvcounter "github.com/jgivc/pluginmedia/internal/service/counter"
	"github.com/jgivc/pluginmedia/internal/service/page"
	"github.com/jgivc/pluginmedia/internal/service/registry"
	"github.com/jgivc/pluginmedia/internal/storage/plugin"
	"github.com/redis/go-redis/v9"
)

const (
	reloadTimeout   = 30 * time.Second
	dumpTimeout     = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

type App struct {
	cfgPath  string
	cfg      *config.Config
	srv      *http.Server
	registry *registry.RegistryService
	counters interface {
		Dump(ctx context.Context, fileName string) error
	}
	log *slog.Logger

	// ready is closed once Start has wired the services.
	ready chan struct{}
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
		ready:   make(chan struct{}),
	}
}

func NewLogger(level string) *slog.Logger {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}

	return slog.New(slog.NewTextHandler(os.Stderr, lo))
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	log := NewLogger(a.cfg.LogLevel)
	a.log = log

	fsa, err := fsadapter.NewFSAdapter(&a.cfg.MediaConfig, log)
	if err != nil {
		panic(err)
	}

	var repo srvcounter.CounterRepository
	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			panic(err)
		}

		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			panic(err)
		}

		repo = counter.NewCounterRepository(rdb, log)
	} else {
		log.Warn("Redis url is not set, asset counters are disabled")
	}

	store := plugin.NewPluginStorage(fsa.Fs(), &a.cfg.PluginsConfig, a.cfg.PluginMediaDir(), log)
	assetSrv := asset.NewAssetService(store, fsa, a.cfg.PluginsConfig.AssetsDirName, log)
	counterSrv := srvcounter.NewCounterService(repo, log)
	a.counters = counterSrv
	a.registry = registry.NewRegistryService(store, assetSrv, counterSrv, log)

	tpl, err := tpladapter.NewTplAdapter(a.cfg.PageTemplate)
	if err != nil {
		panic(err)
	}

	pageSrv := page.NewPageService(a.cfg.URL, store, assetSrv, mdadapter.NewMDAdapter(), tpl, fsa, log)

	mux := http.NewServeMux()
	mux.Handle("GET "+config.MediaURLPath+"/{plugin}/{path...}", httphandler.NewAssetHandler(assetSrv, counterSrv, log))
	mux.Handle("GET /plugins/{plugin}/{$}", httphandler.NewPageHandler(pageSrv, log))
	mux.Handle("GET /stat/plugins/{plugin}/{$}", httphandler.NewCounterHandler(counterSrv, log))
	mux.Handle("POST /clean/{$}", httphandler.NewCleanHandler(a.registry, log))
	mux.Handle("POST /reload/{$}", httphandler.NewReloadHandler(a.registry, log))

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: httphandler.WithRequestID(mux, log),
	}

	close(a.ready)
	a.Reload()

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

func (a *App) started() bool {
	select {
	case <-a.ready:
		return true
	default:
		return false
	}
}

// Reload rescans the plugins dir and removes media that is no longer published.
// It does nothing until Start has wired the services.
func (a *App) Reload() {
	if !a.started() {
		fmt.Println("Service is not started yet")

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	fmt.Println("Scanning plugins...")

	plugins, err := a.registry.Reload(ctx)
	if err != nil {
		fmt.Printf("Cannot scan plugins: %s\n", err)

		return
	}

	for i, p := range plugins {
		fmt.Printf("%d. %s -> %s/plugins/%s/\n", i+1, p.Root, a.cfg.URL, p.Name)
	}

	removed, err := a.registry.Clean(ctx)
	if err != nil {
		a.log.Error("Cannot clean media", slog.Any("error", err))
	}

	for name, paths := range removed {
		fmt.Printf("%s: %d stale entries removed\n", name, len(paths))
	}

	fmt.Println("Done.")
}

func (a *App) Dump() {
	if !a.started() {
		fmt.Println("Service is not started yet")

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dumpTimeout)
	defer cancel()

	if err := a.counters.Dump(ctx, a.cfg.DumpFileName); err != nil {
		a.log.Error("Cannot dump counters", slog.Any("error", err))
	}
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.started() {
		a.srv.Shutdown(ctx)
	}
}

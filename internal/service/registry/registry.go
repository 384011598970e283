package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/pluginmedia/internal/common"
	"github.com/jgivc/pluginmedia/internal/entity"
)

type PluginStorage interface {
	Scan(ctx context.Context) ([]*entity.Plugin, error)
	Plugins() []*entity.Plugin
}

type AssetService interface {
	CleanAll(ctx context.Context) (map[string][]string, error)
	Assets(ctx context.Context, pluginName string) (*entity.AssetSet, error)
}

type CounterService interface {
	Retain(ctx context.Context, keep map[string][]string) error
}

// RegistryService rescans installed plugins and brings the published media
// and the request counters in line with them.
type RegistryService struct {
	store    PluginStorage
	assets   AssetService
	counters CounterService
	log      *slog.Logger
}

func NewRegistryService(store PluginStorage, assets AssetService, counters CounterService, log *slog.Logger) *RegistryService {
	return &RegistryService{
		store:    store,
		assets:   assets,
		counters: counters,
		log:      log.With(slog.String("item", "RegistryService")),
	}
}

func (r *RegistryService) Reload(ctx context.Context) ([]*entity.Plugin, error) {
	plugins, err := r.store.Scan(ctx)
	if err != nil {
		r.log.Error("Cannot scan plugins", slog.Any("error", err))

		return nil, fmt.Errorf("cannot scan plugins: %w", err)
	}

	r.log.Info("Scan plugins", slog.Int("count", len(plugins)))

	if len(plugins) < 1 {
		return nil, common.ErrNoPluginsFound
	}

	return plugins, nil
}

// Clean removes stale media of every plugin and drops counters of assets
// that no longer exist.
func (r *RegistryService) Clean(ctx context.Context) (map[string][]string, error) {
	plugins := r.store.Plugins()

	removed, err := r.assets.CleanAll(ctx)
	if err != nil {
		return removed, fmt.Errorf("cannot clean media: %w", err)
	}

	for name, paths := range removed {
		r.log.Info("Removed stale media", slog.String("plugin", name), slog.Int("count", len(paths)))
	}

	keep := make(map[string][]string, len(plugins))
	for _, plugin := range plugins {
		set, err := r.assets.Assets(ctx, plugin.Name)
		if err != nil {
			return removed, fmt.Errorf("cannot get plugin %s assets: %w", plugin.Name, err)
		}
		keep[plugin.Name] = set.Keys()
	}

	if err := r.counters.Retain(ctx, keep); err != nil {
		return removed, err
	}

	return removed, nil
}

package counter

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/jgivc/pluginmedia/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyAssetCounters = "ac" // HASH. ac:{plugin} asset_path: counter
	KeyPlugins       = "ap" // SET. Plugins having at least one counter

	KeySeparator = ":"
)

type counterRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewCounterRepository(cl *redis.Client, log *slog.Logger) *counterRepository {
	return &counterRepository{
		cl:  cl,
		log: log.With(slog.String("item", "CounterRepository")),
	}
}

func (r *counterRepository) IncAssetCounter(ctx context.Context, plugin, path string) (int64, error) {
	pipe := r.cl.TxPipeline()
	inc := pipe.HIncrBy(ctx, getKey(KeyAssetCounters, plugin), path, 1)
	pipe.SAdd(ctx, KeyPlugins, plugin)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cannot increment asset %s/%s counter: %w", plugin, path, err)
	}

	return inc.Val(), nil
}

func (r *counterRepository) GetPluginCounters(ctx context.Context, plugin string) (map[string]int64, error) {
	values, err := r.cl.HGetAll(ctx, getKey(KeyAssetCounters, plugin)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get plugin %s counters: %w", plugin, err)
	}

	counters := make(map[string]int64, len(values))
	for path, value := range values {
		c, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			r.log.Error("Cannot convert counter value", slog.String("plugin", plugin), slog.String("path", path), slog.Any("error", err))

			continue
		}

		counters[path] = c
	}

	return counters, nil
}

// Retain drops counters of plugins and assets that are not in keep.
func (r *counterRepository) Retain(ctx context.Context, keep map[string][]string) error {
	plugins, err := r.cl.SMembers(ctx, KeyPlugins).Result()
	if err != nil {
		return fmt.Errorf("cannot get plugins with counters: %w", err)
	}

	pipe := r.cl.Pipeline()
	var deleted int

	for _, plugin := range plugins {
		key := getKey(KeyAssetCounters, plugin)

		paths, exists := keep[plugin]
		if !exists {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, KeyPlugins, plugin)
			deleted++

			continue
		}

		fields, err := r.cl.HKeys(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("cannot get plugin %s counter fields: %w", plugin, err)
		}

		var stale []string
		for _, field := range fields {
			if !slices.Contains(paths, field) {
				stale = append(stale, field)
			}
		}

		if len(stale) > 0 {
			pipe.HDel(ctx, key, stale...)
			deleted += len(stale)
		}
	}

	if deleted > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("cannot delete counters: %w", err)
		}

		r.log.Info("Deleted stale counters", slog.Int("count", deleted))
	}

	return nil
}

func (r *counterRepository) CounterIterator(ctx context.Context) (iter.Seq2[*entity.PluginCounters, error], error) {
	plugins, err := r.cl.SMembers(ctx, KeyPlugins).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get plugin list: %w", err)
	}
	slices.Sort(plugins)

	return func(yield func(*entity.PluginCounters, error) bool) {
		for _, plugin := range plugins {
			counters, err := r.GetPluginCounters(ctx, plugin)
			if err != nil {
				yield(nil, err)

				return
			}

			pc := &entity.PluginCounters{
				Plugin: plugin,
				Assets: make([]entity.AssetCounter, 0, len(counters)),
			}

			for path, counter := range counters {
				pc.Assets = append(pc.Assets, entity.AssetCounter{Path: path, Counter: counter})
			}

			slices.SortFunc(pc.Assets, func(a, b entity.AssetCounter) int {
				return strings.Compare(a.Path, b.Path)
			})

			if !yield(pc, nil) {
				return
			}
		}
	}, nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}

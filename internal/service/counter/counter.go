package counter

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/jgivc/pluginmedia/internal/common"
	"github.com/jgivc/pluginmedia/internal/entity"
	"gopkg.in/yaml.v2"
)

const (
	serviceName = "counter"
)

type CounterRepository interface {
	IncAssetCounter(ctx context.Context, plugin, path string) (int64, error)
	GetPluginCounters(ctx context.Context, plugin string) (map[string]int64, error)
	Retain(ctx context.Context, keep map[string][]string) error
	CounterIterator(ctx context.Context) (iter.Seq2[*entity.PluginCounters, error], error)
}

type counterService struct {
	repo CounterRepository
	log  *slog.Logger
}

// NewCounterService wraps repo. A nil repo disables counting: increments are
// dropped and reads fail with common.ErrCountersDisabled.
func NewCounterService(repo CounterRepository, log *slog.Logger) *counterService {
	return &counterService{
		repo: repo,
		log:  log.With(slog.String("service", serviceName)),
	}
}

func (c *counterService) Enabled() bool {
	return c.repo != nil
}

func (c *counterService) IncAssetCounter(ctx context.Context, plugin, path string) (int64, error) {
	if c.repo == nil {
		return 0, nil
	}

	counter, err := c.repo.IncAssetCounter(ctx, plugin, path)
	if err != nil {
		c.log.Error("Cannot increment asset counter", slog.String("plugin", plugin), slog.String("path", path), slog.Any("error", err))

		return 0, fmt.Errorf("cannot increment asset %s/%s counter: %w", plugin, path, err)
	}

	return counter, nil
}

func (c *counterService) GetPluginCounters(ctx context.Context, plugin string) (map[string]int64, error) {
	if c.repo == nil {
		return nil, common.ErrCountersDisabled
	}

	counters, err := c.repo.GetPluginCounters(ctx, plugin)
	if err != nil {
		c.log.Error("Cannot get plugin counters", slog.String("plugin", plugin), slog.Any("error", err))

		return nil, fmt.Errorf("cannot get plugin %s counters: %w", plugin, err)
	}

	return counters, nil
}

// Retain keeps counters only for the given plugins and asset paths.
func (c *counterService) Retain(ctx context.Context, keep map[string][]string) error {
	if c.repo == nil {
		return nil
	}

	if err := c.repo.Retain(ctx, keep); err != nil {
		c.log.Error("Cannot retain counters", slog.Any("error", err))

		return fmt.Errorf("cannot retain counters: %w", err)
	}

	return nil
}

// Dump writes all counters to fileName as YAML.
func (c *counterService) Dump(ctx context.Context, fileName string) error {
	if c.repo == nil {
		return common.ErrCountersDisabled
	}

	it, err := c.repo.CounterIterator(ctx)
	if err != nil {
		return fmt.Errorf("cannot get counters: %w", err)
	}

	var counters []*entity.PluginCounters
	for pc, err := range it {
		if err != nil {
			return fmt.Errorf("cannot read counters: %w", err)
		}

		counters = append(counters, pc)
	}

	data, err := yaml.Marshal(counters)
	if err != nil {
		return fmt.Errorf("cannot marshal counters: %w", err)
	}

	if err := os.WriteFile(fileName, data, 0o644); err != nil {
		return fmt.Errorf("cannot write counters file %s: %w", fileName, err)
	}

	c.log.Info("Counters dumped", slog.String("file", fileName), slog.Int("plugins", len(counters)))

	return nil
}

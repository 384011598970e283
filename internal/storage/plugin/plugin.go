package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jgivc/pluginmedia/internal/common"
	"github.com/jgivc/pluginmedia/internal/config"
	"github.com/jgivc/pluginmedia/internal/entity"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	maxPlugins = 500
)

// Manifest is the optional plugin.yml in a plugin root.
type Manifest struct {
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Version     string          `yaml:"version"`
	Assets      *ManifestAssets `yaml:"assets"`
}

// ManifestAssets declares plugin assets. Files and Globs are positional, their
// public path is derived from the file location. Paths maps an explicit public
// path to a file. Relative locations are resolved against the plugin root.
type ManifestAssets struct {
	Files []string      `yaml:"files"`
	Paths yaml.MapSlice `yaml:"paths"`
	Globs []string      `yaml:"globs"`
}

type pluginStorage struct {
	running  atomic.Bool
	fs       afero.Fs
	cfg      *config.PluginsConfig
	mediaDir string

	mu      sync.RWMutex
	plugins map[string]*entity.Plugin

	log *slog.Logger
}

func NewPluginStorage(fs afero.Fs, cfg *config.PluginsConfig, mediaDir string, log *slog.Logger) *pluginStorage {
	return &pluginStorage{
		fs:       fs,
		cfg:      cfg,
		mediaDir: mediaDir,
		plugins:  make(map[string]*entity.Plugin),
		log:      log.With(slog.String("item", "PluginStorage")),
	}
}

func (s *pluginStorage) Plugin(name string) (*entity.Plugin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plugin, ok := s.plugins[name]

	return plugin, ok
}

// Plugins returns all registered plugins ordered by name.
func (s *pluginStorage) Plugins() []*entity.Plugin {
	s.mu.RLock()
	plugins := make([]*entity.Plugin, 0, len(s.plugins))
	for _, plugin := range s.plugins {
		plugins = append(plugins, plugin)
	}
	s.mu.RUnlock()

	slices.SortFunc(plugins, func(a, b *entity.Plugin) int {
		return strings.Compare(a.Name, b.Name)
	})

	return plugins
}

// Scan reads every plugin directory and replaces the registered set. Only one
// scan runs at a time.
func (s *pluginStorage) Scan(ctx context.Context) ([]*entity.Plugin, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, common.ErrScanAlreadyStarted
	}
	defer s.running.Store(false)

	entries, err := afero.ReadDir(s.fs, s.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read plugins dir: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			dirs = append(dirs, entry.Name())
		}

		if len(dirs) >= maxPlugins {
			s.log.Warn("Too many plugins, the rest are skipped", slog.Int("max", maxPlugins))

			break
		}
	}

	plugins := make(map[string]*entity.Plugin, len(dirs))

	if len(dirs) > 0 {
		in := make(chan string, len(dirs))
		out := make(chan *entity.Plugin, len(dirs))

		for _, dir := range dirs {
			in <- dir
		}
		close(in)

		workers := min(max(s.cfg.Workers, 1), len(dirs))

		var wg sync.WaitGroup
		wg.Add(workers)
		for n := 0; n < workers; n++ {
			go s.worker(ctx, n, in, out, &wg)
		}

		go func() {
			wg.Wait()
			close(out)
		}()

		for plugin := range out {
			s.log.Info("Found plugin", slog.String("name", plugin.Name), slog.String("root", plugin.Root))
			plugins[plugin.Name] = plugin
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("plugin scan interrupted: %w", err)
	}

	s.mu.Lock()
	s.plugins = plugins
	s.mu.Unlock()

	return s.Plugins(), nil
}

func (s *pluginStorage) worker(ctx context.Context, n int, in chan string, out chan *entity.Plugin, wg *sync.WaitGroup) {
	defer wg.Done()

	log := s.log.With(slog.Int("worker_id", n))
	log.Debug("Started")

	for name := range in {
		plugin, err := s.load(name)
		if err != nil {
			log.Error("Cannot load plugin", slog.String("name", name), slog.Any("error", err))

			continue
		}

		select {
		case <-ctx.Done():
			log.Info("Interrupted")

			return
		case out <- plugin:
		}
	}

	log.Debug("Done")
}

func (s *pluginStorage) load(name string) (*entity.Plugin, error) {
	root := filepath.Join(s.cfg.Dir, name)

	plugin := &entity.Plugin{
		Name:      name,
		Title:     name,
		Root:      root,
		MediaRoot: filepath.Join(s.mediaDir, name),
	}

	if readme := filepath.Join(root, s.cfg.ReadmeFileName); s.fileExists(readme) {
		plugin.Readme = readme
	}

	manifestFileName := filepath.Join(root, s.cfg.ManifestFileName)
	if !s.fileExists(manifestFileName) {
		return plugin, nil
	}

	data, err := afero.ReadFile(s.fs, manifestFileName)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cannot parse manifest %s: %w", manifestFileName, err)
	}

	if m.Title != "" {
		plugin.Title = m.Title
	}
	plugin.Description = m.Description
	plugin.Version = m.Version

	if m.Assets != nil {
		plugin.Extends.Assets = s.assetSource(root, m.Assets)
	}

	return plugin, nil
}

// assetSource defers touching the filesystem until the declarations are
// asked for, so globs see the plugin files as they are at discovery time.
func (s *pluginStorage) assetSource(root string, m *ManifestAssets) entity.AssetSource {
	return entity.AssetsFunc(func() (entity.Declarations, error) {
		var decls entity.Declarations

		for _, file := range m.Files {
			decls = append(decls, entity.Declaration{Root: absPath(root, file)})
		}

		for _, item := range m.Paths {
			key, ok := item.Key.(string)
			if !ok {
				return nil, fmt.Errorf("asset path key must be a string, got %v", item.Key)
			}

			value, ok := item.Value.(string)
			if !ok {
				return nil, fmt.Errorf("asset %s location must be a string, got %v", key, item.Value)
			}

			decls = append(decls, entity.Declaration{Key: key, Root: absPath(root, value)})
		}

		if len(m.Globs) > 0 {
			fsys := afero.NewIOFS(afero.NewBasePathFs(s.fs, root))
			for _, pattern := range m.Globs {
				matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
				if err != nil {
					return nil, fmt.Errorf("cannot expand glob %q: %w", pattern, err)
				}

				for _, match := range matches {
					decls = append(decls, entity.Declaration{Root: absPath(root, match)})
				}
			}
		}

		return decls, nil
	})
}

func (s *pluginStorage) fileExists(path string) bool {
	stat, err := s.fs.Stat(path)
	if err != nil {
		return false
	}

	return !stat.IsDir()
}

func absPath(root, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(root, p)
}

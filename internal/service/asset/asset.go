package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jgivc/pluginmedia/internal/common"
	"github.com/jgivc/pluginmedia/internal/entity"
	"github.com/spf13/afero"
)

const (
	serviceName = "asset"

	defaultAssetsDirName = "assets"
)

type PluginRegistry interface {
	Plugin(name string) (*entity.Plugin, bool)
	Plugins() []*entity.Plugin
}

type FSAdapter interface {
	Index(root string) ([]string, error)
	Files(root string) ([]string, error)
	IsDir(p string) bool
	Remove(p string) error
	RemoveAll(p string) error
	Publish(src, dst string) error
	Open(p string) (afero.File, error)
	MIMEType(p string) (string, error)
}

type assetService struct {
	registry  PluginRegistry
	fs        FSAdapter
	assetsDir string
	locks     sync.Map // plugin name -> *sync.Mutex
	log       *slog.Logger
}

// NewAssetService creates the plugin asset publisher. assetsDir is the
// directory inside a plugin root scanned when a plugin declares no assets.
func NewAssetService(registry PluginRegistry, fs FSAdapter, assetsDir string, log *slog.Logger) *assetService {
	if assetsDir == "" {
		assetsDir = defaultAssetsDirName
	}

	return &assetService{
		registry:  registry,
		fs:        fs,
		assetsDir: assetsDir,
		log:       log.With(slog.String("service", serviceName)),
	}
}

/*
Discover builds the current asset set of a plugin.

1. If the plugin declares assets, they are used. Positional entries get the
   path relative to the plugin root as key.
2. Otherwise, or when the declaration turns out empty, every regular file
   below the plugin assets dir is an asset keyed by its relative path.
*/
func (s *assetService) Discover(plugin *entity.Plugin) (*entity.AssetSet, error) {
	set := entity.NewAssetSet(plugin)

	var decls entity.Declarations
	if source := plugin.Extends.Assets; source != nil {
		d, err := source.Assets()
		if err != nil {
			return nil, fmt.Errorf("cannot get declared assets of plugin %s: %w", plugin.Name, err)
		}
		decls = d
	}

	if len(decls) > 0 {
		prefix := plugin.Root + string(filepath.Separator)

		for _, decl := range decls {
			key := decl.Key
			if key == "" {
				rel, ok := strings.CutPrefix(decl.Root, prefix)
				if !ok {
					s.log.Warn("Skip asset outside of plugin root", slog.String("plugin", plugin.Name), slog.String("root", decl.Root))

					continue
				}
				key = filepath.ToSlash(rel)
			}

			if !ValidPath(key) {
				s.log.Warn("Skip asset with invalid path", slog.String("plugin", plugin.Name), slog.String("path", key))

				continue
			}

			set.Set(key, decl.Root)
		}

		return set, nil
	}

	root := filepath.Join(plugin.Root, s.assetsDir)
	files, err := s.fs.Files(root)
	if err != nil {
		return nil, fmt.Errorf("cannot scan assets of plugin %s: %w", plugin.Name, err)
	}

	for _, file := range files {
		set.Set(file, filepath.Join(root, filepath.FromSlash(file)))
	}

	return set, nil
}

// Assets returns the current asset set of the named plugin.
func (s *assetService) Assets(ctx context.Context, pluginName string) (*entity.AssetSet, error) {
	plugin, ok := s.registry.Plugin(pluginName)
	if !ok {
		return nil, common.ErrPluginNotFound
	}

	return s.Discover(plugin)
}

// Clean removes published files of the named plugin that are no longer
// declared and returns their paths. An unknown plugin is a no-op.
func (s *assetService) Clean(ctx context.Context, pluginName string) ([]string, error) {
	plugin, ok := s.registry.Plugin(pluginName)
	if !ok {
		return nil, nil
	}

	unlock := s.lock(plugin.Name)
	defer unlock()

	_, removed, err := s.clean(ctx, plugin)

	return removed, err
}

// CleanAll runs Clean for every registered plugin.
func (s *assetService) CleanAll(ctx context.Context) (map[string][]string, error) {
	result := make(map[string][]string)

	var errs []error
	for _, plugin := range s.registry.Plugins() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)

			break
		}

		unlock := s.lock(plugin.Name)
		_, removed, err := s.clean(ctx, plugin)
		unlock()
		if err != nil {
			s.log.Error("Cannot clean plugin media", slog.String("plugin", plugin.Name), slog.Any("error", err))
			errs = append(errs, err)

			continue
		}

		if len(removed) > 0 {
			result[plugin.Name] = removed
		}
	}

	return result, errors.Join(errs...)
}

// Resolve publishes one asset and opens the published file. Unknown plugins
// and paths yield common.ErrPluginNotFound and common.ErrAssetNotFound.
func (s *assetService) Resolve(ctx context.Context, pluginName, p string) (*entity.FileResponse, error) {
	if !ValidPath(p) {
		return nil, common.ErrAssetNotFound
	}

	plugin, ok := s.registry.Plugin(pluginName)
	if !ok {
		return nil, common.ErrPluginNotFound
	}

	asset, err := s.publish(ctx, plugin, p)
	if err != nil {
		return nil, err
	}

	root := asset.Root()

	file, err := s.fs.Open(root)
	if err != nil {
		return nil, fmt.Errorf("cannot open published asset %s: %w", root, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()

		return nil, fmt.Errorf("cannot stat published asset %s: %w", root, err)
	}

	mimeType, err := s.fs.MIMEType(root)
	if err != nil {
		s.log.Error("Cannot get asset mimeType", slog.String("path", root), slog.Any("error", err))
	}

	return &entity.FileResponse{
		Plugin:   plugin.Name,
		Path:     asset.Path,
		Root:     root,
		MIMEType: mimeType,
		Size:     stat.Size(),
		ModTime:  stat.ModTime(),
		Content:  file,
	}, nil
}

// publish cleans the plugin media and publishes the asset at p. Publishing
// and cleaning of one plugin never overlap, so a clean cannot remove a copy
// that is still being written.
func (s *assetService) publish(ctx context.Context, plugin *entity.Plugin, p string) (*entity.Asset, error) {
	unlock := s.lock(plugin.Name)
	defer unlock()

	set, _, err := s.clean(ctx, plugin)
	if err != nil {
		return nil, err
	}

	asset, ok := set.Get(p)
	if !ok {
		return nil, common.ErrAssetNotFound
	}

	if err := s.fs.Publish(asset.SourceRoot, asset.Root()); err != nil {
		return nil, fmt.Errorf("cannot publish asset %s of plugin %s: %w", p, plugin.Name, err)
	}

	return asset, nil
}

func (s *assetService) lock(pluginName string) func() {
	mu, _ := s.locks.LoadOrStore(pluginName, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()

	return mu.(*sync.Mutex).Unlock
}

func (s *assetService) clean(ctx context.Context, plugin *entity.Plugin) (*entity.AssetSet, []string, error) {
	log := s.log.With(slog.String("op", "clean"), slog.String("plugin", plugin.Name))

	published, err := s.fs.Index(plugin.MediaRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot list published assets of plugin %s: %w", plugin.Name, err)
	}

	set, err := s.Discover(plugin)
	if err != nil {
		return nil, nil, err
	}

	isDir := func(entry string) bool {
		return s.fs.IsDir(filepath.Join(plugin.MediaRoot, filepath.FromSlash(entry)))
	}

	var removed []string
	for _, entry := range staleEntries(published, set, isDir) {
		if err := ctx.Err(); err != nil {
			return nil, removed, err
		}

		if insideAny(entry, removed) {
			continue
		}

		root := filepath.Join(plugin.MediaRoot, filepath.FromSlash(entry))
		if s.fs.IsDir(root) {
			err = s.fs.RemoveAll(root)
		} else {
			err = s.fs.Remove(root)
		}

		if err != nil {
			return nil, removed, fmt.Errorf("cannot clean plugin %s media: %w", plugin.Name, err)
		}

		log.Debug("Removed stale asset", slog.String("path", entry))
		removed = append(removed, entry)
	}

	if len(removed) > 0 {
		log.Info("Cleaned plugin media", slog.Int("removed", len(removed)))
	}

	return set, removed, nil
}

// staleEntries returns published entries that are neither an asset path nor a
// parent directory of one, parents first. An entry whose type on disk does not
// match its role is stale too: a directory at an asset path or a non-directory
// at a parent path.
func staleEntries(published []string, set *entity.AssetSet, isDir func(entry string) bool) []string {
	keys := make(map[string]struct{}, set.Len())
	dirs := make(map[string]struct{})
	for key := range set.All() {
		keys[key] = struct{}{}
		for dir := path.Dir(key); dir != "."; dir = path.Dir(dir) {
			dirs[dir] = struct{}{}
		}
	}

	var stale []string
	for _, entry := range published {
		if _, ok := keys[entry]; ok && !isDir(entry) {
			continue
		}
		if _, ok := dirs[entry]; ok && isDir(entry) {
			continue
		}
		stale = append(stale, entry)
	}
	slices.Sort(stale)

	return stale
}

func insideAny(entry string, dirs []string) bool {
	for _, dir := range dirs {
		if strings.HasPrefix(entry, dir+"/") {
			return true
		}
	}

	return false
}

// ValidPath reports whether p can be used as a public asset path: relative,
// slash separated, without empty, "." or ".." elements.
func ValidPath(p string) bool {
	return p != "." && fs.ValidPath(p)
}

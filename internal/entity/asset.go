package entity

import (
	"iter"
	"path/filepath"
)

// Asset is a single file a plugin publishes under a stable public path.
type Asset struct {
	Path       string  // Public path relative to the plugin media root, slash separated
	SourceRoot string  // Absolute path to the original file
	Plugin     *Plugin // Owning plugin
}

func NewAsset(p, sourceRoot string, plugin *Plugin) *Asset {
	return &Asset{
		Path:       p,
		SourceRoot: sourceRoot,
		Plugin:     plugin,
	}
}

// Root returns the location of the published copy.
func (a *Asset) Root() string {
	return filepath.Join(a.Plugin.MediaRoot, filepath.FromSlash(a.Path))
}

// AssetSet maps public paths to assets of one plugin, keeping insertion order.
type AssetSet struct {
	plugin *Plugin
	keys   []string
	assets map[string]*Asset
}

func NewAssetSet(plugin *Plugin) *AssetSet {
	return &AssetSet{
		plugin: plugin,
		assets: make(map[string]*Asset),
	}
}

func (s *AssetSet) Plugin() *Plugin {
	return s.plugin
}

// Set adds an asset owned by the set's plugin. A repeated path replaces the
// previous asset and keeps its position.
func (s *AssetSet) Set(p, sourceRoot string) *Asset {
	asset := NewAsset(p, sourceRoot, s.plugin)
	if _, exists := s.assets[p]; !exists {
		s.keys = append(s.keys, p)
	}
	s.assets[p] = asset

	return asset
}

func (s *AssetSet) Get(p string) (*Asset, bool) {
	asset, ok := s.assets[p]

	return asset, ok
}

func (s *AssetSet) Has(p string) bool {
	_, ok := s.assets[p]

	return ok
}

func (s *AssetSet) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)

	return keys
}

func (s *AssetSet) Len() int {
	return len(s.keys)
}

func (s *AssetSet) All() iter.Seq2[string, *Asset] {
	return func(yield func(string, *Asset) bool) {
		for _, key := range s.keys {
			if !yield(key, s.assets[key]) {
				return
			}
		}
	}
}

package page

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jgivc/pluginmedia/internal/adapter/mdadapter"
	"github.com/jgivc/pluginmedia/internal/common"
	"github.com/jgivc/pluginmedia/internal/config"
	"github.com/jgivc/pluginmedia/internal/entity"
)

const (
	serviceName = "page"
)

type PluginRegistry interface {
	Plugin(name string) (*entity.Plugin, bool)
}

type AssetService interface {
	Assets(ctx context.Context, pluginName string) (*entity.AssetSet, error)
}

type MDAdapter interface {
	Render(source []byte, resolver mdadapter.AssetResolver) (*mdadapter.Document, error)
}

type TplAdapter interface {
	Parse(page *entity.PluginPage) (string, error)
}

type FileReader interface {
	ReadFile(p string) ([]byte, error)
}

type pageService struct {
	baseURL  string
	registry PluginRegistry
	assets   AssetService
	md       MDAdapter
	tpl      TplAdapter
	fs       FileReader
	log      *slog.Logger
}

func NewPageService(baseURL string, registry PluginRegistry, assets AssetService, md MDAdapter, tpl TplAdapter, fs FileReader, log *slog.Logger) *pageService {
	return &pageService{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		registry: registry,
		assets:   assets,
		md:       md,
		tpl:      tpl,
		fs:       fs,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// GetPage renders the plugin page: its README and the list of its assets.
func (p *pageService) GetPage(ctx context.Context, pluginName string) (string, error) {
	plugin, ok := p.registry.Plugin(pluginName)
	if !ok {
		return "", common.ErrPluginNotFound
	}

	set, err := p.assets.Assets(ctx, pluginName)
	if err != nil {
		p.log.Error("Cannot get plugin assets", slog.String("plugin", pluginName), slog.Any("error", err))

		return "", fmt.Errorf("cannot get plugin %s assets: %w", pluginName, err)
	}

	pc := &entity.PluginPage{
		URL:     p.baseURL,
		Plugin:  plugin,
		Title:   plugin.Title,
		Summary: plugin.Description,
	}

	for key := range set.All() {
		pc.Assets = append(pc.Assets, entity.PageAsset{Path: key, URL: AssetURL(p.baseURL, plugin.Name, key)})
	}

	if plugin.Readme != "" {
		source, err := p.fs.ReadFile(plugin.Readme)
		if err != nil {
			return "", fmt.Errorf("cannot read readme of plugin %s: %w", pluginName, err)
		}

		doc, err := p.md.Render(source, &assetResolver{baseURL: p.baseURL, set: set})
		if err != nil {
			return "", fmt.Errorf("cannot render readme of plugin %s: %w", pluginName, err)
		}

		pc.Content = doc.HTML
		if doc.Title != "" {
			pc.Title = doc.Title
		}
		if doc.Summary != "" {
			pc.Summary = doc.Summary
		}
	}

	content, err := p.tpl.Parse(pc)
	if err != nil {
		p.log.Error("Cannot render page", slog.String("plugin", pluginName), slog.Any("error", err))

		return "", fmt.Errorf("cannot render plugin %s page: %w", pluginName, err)
	}

	return content, nil
}

// AssetURL builds the public URL of a plugin asset.
func AssetURL(baseURL, pluginName, p string) string {
	segments := strings.Split(p, "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}

	return baseURL + config.MediaURLPath + "/" + url.PathEscape(pluginName) + "/" + strings.Join(segments, "/")
}

type assetResolver struct {
	baseURL string
	set     *entity.AssetSet
}

func (r *assetResolver) AssetURL(p string) (string, bool) {
	if !r.set.Has(p) {
		return "", false
	}

	return AssetURL(r.baseURL, r.set.Plugin().Name, p), true
}

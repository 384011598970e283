package mdadapter

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// AssetsExtension renders {{asset: path}} directives as links to published
// plugin assets.
type AssetsExtension struct{}

func NewAssetsExtension() goldmark.Extender {
	return &AssetsExtension{}
}

func (e *AssetsExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithInlineParsers(
			util.Prioritized(NewAssetDirectiveParser(), 500),
		),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(
			util.Prioritized(NewAssetDirectiveRenderer(), 500),
		),
	)
}

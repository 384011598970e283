package mdadapter

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

type AssetDirectiveRenderer struct{}

func NewAssetDirectiveRenderer() renderer.NodeRenderer {
	return &AssetDirectiveRenderer{}
}

func (r *AssetDirectiveRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindAssetDirective, r.renderAssetDirective)
}

func (r *AssetDirectiveRenderer) renderAssetDirective(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	directive := n.(*AssetDirective)
	path := util.EscapeHTML([]byte(directive.Path))

	if !directive.Found {
		_, _ = w.WriteString(`<span class="asset-missing">`)
		_, _ = w.Write(path)
		_, _ = w.WriteString(`</span>`)

		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(`<a class="asset" href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape([]byte(directive.URL), true)))
	_, _ = w.WriteString(`">`)
	_, _ = w.Write(path)
	_, _ = w.WriteString(`</a>`)

	return ast.WalkContinue, nil
}

package mdadapter

import (
	"strconv"

	"github.com/yuin/goldmark/ast"
)

var KindAssetDirective = ast.NewNodeKind("AssetDirective")

// AssetDirective is an inline {{asset: path}} reference to a plugin asset.
type AssetDirective struct {
	ast.BaseInline
	Path  string
	URL   string
	Found bool
}

func (n *AssetDirective) Kind() ast.NodeKind {
	return KindAssetDirective
}

func (n *AssetDirective) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Path":  n.Path,
		"URL":   n.URL,
		"Found": strconv.FormatBool(n.Found),
	}, nil)
}

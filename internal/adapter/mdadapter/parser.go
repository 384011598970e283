package mdadapter

import (
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var (
	AssetResolverKey = parser.NewContextKey()

	directiveRegexp = regexp.MustCompile(`^\{\{\s*asset:\s*([^\s}]+)\s*\}\}`)
)

// AssetResolver maps an asset path to its public URL.
type AssetResolver interface {
	AssetURL(path string) (string, bool)
}

type AssetDirectiveParser struct{}

func NewAssetDirectiveParser() parser.InlineParser {
	return &AssetDirectiveParser{}
}

func (s *AssetDirectiveParser) Trigger() []byte {
	return []byte{'{'}
}

func (s *AssetDirectiveParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()

	matches := directiveRegexp.FindSubmatch(line)
	if matches == nil {
		return nil
	}
	block.Advance(len(matches[0]))

	node := &AssetDirective{Path: string(matches[1])}
	if resolver, ok := pc.Get(AssetResolverKey).(AssetResolver); ok {
		node.URL, node.Found = resolver.AssetURL(node.Path)
	}

	return node
}

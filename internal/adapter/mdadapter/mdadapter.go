package mdadapter

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

// Document is a rendered README.
type Document struct {
	Title   string
	Summary string
	HTML    template.HTML
}

type Frontmatter struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
}

type mdAdapter struct {
	md goldmark.Markdown
}

func NewMDAdapter() *mdAdapter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&frontmatter.Extender{},
			NewAssetsExtension(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &mdAdapter{md: md}
}

// Render converts markdown to HTML. resolver may be nil, then every asset
// directive renders as missing.
func (a *mdAdapter) Render(source []byte, resolver AssetResolver) (*Document, error) {
	pc := parser.NewContext()
	if resolver != nil {
		pc.Set(AssetResolverKey, resolver)
	}

	var buf bytes.Buffer
	if err := a.md.Convert(source, &buf, parser.WithContext(pc)); err != nil {
		return nil, fmt.Errorf("cannot convert markdown: %w", err)
	}

	doc := &Document{
		HTML: template.HTML(buf.String()),
	}

	if data := frontmatter.Get(pc); data != nil {
		var fm Frontmatter
		if err := data.Decode(&fm); err != nil {
			return nil, fmt.Errorf("cannot decode frontmatter: %w", err)
		}

		doc.Title = fm.Title
		doc.Summary = fm.Summary
	}

	return doc, nil
}

package tpladapter

import (
	"bytes"
	"fmt"
	"html/template"
	"os"

	_ "embed"

	"github.com/jgivc/pluginmedia/internal/entity"
)

const (
	templateNameAsset  = "ASSET"
	templateNameAssets = "ASSETS"

	funcNameAsset  = "asset"
	funcNameAssets = "assets"
)

//go:embed template.html
var defaultTemplate string

// tplAdapter renders plugin pages. A custom template may call
// {{ asset "path" }} and {{ assets }}, which render the ASSET and ASSETS
// templates it defines.
type tplAdapter struct {
	tpl *template.Template
}

// NewTplAdapter parses templateFileName, or the built-in page template when
// the name is empty.
func NewTplAdapter(templateFileName string) (*tplAdapter, error) {
	src := defaultTemplate
	if templateFileName != "" {
		data, err := os.ReadFile(templateFileName)
		if err != nil {
			return nil, fmt.Errorf("cannot read template: %w", err)
		}

		src = string(data)
	}

	return newTplAdapter(src)
}

func newTplAdapter(src string) (*tplAdapter, error) {
	tpl := template.New("").Funcs(funcs(nil))
	if _, err := tpl.Parse(src); err != nil {
		return nil, fmt.Errorf("cannot parse template: %w", err)
	}

	return &tplAdapter{tpl: tpl}, nil
}

func (a *tplAdapter) Parse(page *entity.PluginPage) (string, error) {
	// Executed templates cannot be cloned, so the parsed one is never executed.
	tpl, err := a.tpl.Clone()
	if err != nil {
		return "", fmt.Errorf("cannot clone template: %w", err)
	}
	tpl.Funcs(funcs(&pageRenderer{tpl: tpl, page: page}))

	buf := bytes.Buffer{}
	if err := tpl.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("cannot execute template: %w", err)
	}

	return buf.String(), nil
}

func funcs(r *pageRenderer) template.FuncMap {
	return template.FuncMap{
		funcNameAsset:  r.renderAsset,
		funcNameAssets: r.renderAssets,
	}
}

type pageRenderer struct {
	tpl  *template.Template
	page *entity.PluginPage
}

func (r *pageRenderer) lookupAsset(p string) *entity.PageAsset {
	for i := range r.page.Assets {
		if r.page.Assets[i].Path == p {
			return &r.page.Assets[i]
		}
	}

	return nil
}

func (r *pageRenderer) renderAsset(p string, args ...string) (template.HTML, error) {
	tpl := r.tpl.Lookup(templateNameAsset)
	if tpl == nil {
		return "", fmt.Errorf("template %s must be defined", templateNameAsset)
	}

	found := r.lookupAsset(p)
	if found == nil {
		return "", fmt.Errorf("cannot find asset: %s", p)
	}

	asset := *found
	if len(args) > 0 {
		asset.Path = args[0]
	}

	buf := bytes.Buffer{}
	if err := tpl.Execute(&buf, asset); err != nil {
		return "", fmt.Errorf("cannot execute template %s: %w", templateNameAsset, err)
	}

	return template.HTML(buf.String()), nil
}

func (r *pageRenderer) renderAssets() (template.HTML, error) {
	tpl := r.tpl.Lookup(templateNameAssets)
	if tpl == nil {
		return "", fmt.Errorf("template %s must be defined", templateNameAssets)
	}

	buf := bytes.Buffer{}
	if err := tpl.Execute(&buf, r.page.Assets); err != nil {
		return "", fmt.Errorf("cannot execute template %s: %w", templateNameAssets, err)
	}

	return template.HTML(buf.String()), nil
}

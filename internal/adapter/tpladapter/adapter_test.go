package tpladapter

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jgivc/pluginmedia/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPage() *entity.PluginPage {
	return &entity.PluginPage{
		Plugin:  &entity.Plugin{Name: "demo", Version: "1.2.0"},
		Title:   "Demo",
		Summary: "Demo <plugin>",
		Content: "<p>readme</p>",
		Assets: []entity.PageAsset{
			{Path: "app.js", URL: "http://h/media/plugins/demo/app.js"},
			{Path: "css/app.css", URL: "http://h/media/plugins/demo/css/app.css"},
		},
	}
}

func TestParseDefault(t *testing.T) {
	a, err := NewTplAdapter("")
	require.NoError(t, err)

	content, err := a.Parse(newTestPage())
	require.NoError(t, err)

	require.Contains(t, content, "<title>Demo</title>")
	require.Contains(t, content, "Demo &lt;plugin&gt;")
	require.Contains(t, content, "Version 1.2.0")
	require.Contains(t, content, "<p>readme</p>")
	require.Contains(t, content, `<a class="asset" href="http://h/media/plugins/demo/css/app.css">css/app.css</a>`)

	page := newTestPage()
	page.Assets = nil
	content, err = a.Parse(page)
	require.NoError(t, err)
	require.Contains(t, content, "This plugin publishes no assets.")
}

func TestParseCustomTemplate(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    string
		wantErr bool
	}{
		{
			name: "single asset",
			src:  `{{ define "ASSET" }}[{{ .Path }}]({{ .URL }}){{ end }}{{ asset "app.js" }}`,
			want: "[app.js](http://h/media/plugins/demo/app.js)",
		},
		{
			name: "asset with caption",
			src:  `{{ define "ASSET" }}{{ .Path }}{{ end }}{{ asset "app.js" "Script" }}`,
			want: "Script",
		},
		{
			name:    "unknown asset",
			src:     `{{ define "ASSET" }}{{ .Path }}{{ end }}{{ asset "missing.js" }}`,
			wantErr: true,
		},
		{
			name:    "asset template is not defined",
			src:     `{{ asset "app.js" }}`,
			wantErr: true,
		},
		{
			name:    "assets template is not defined",
			src:     `{{ assets }}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := newTplAdapter(tt.src)
			require.NoError(t, err)

			content, err := a.Parse(newTestPage())
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, content)
		})
	}
}

func TestNewTplAdapterFromFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(fileName, []byte(`<h1>{{ .Title }}</h1>`), 0o644))

	a, err := NewTplAdapter(fileName)
	require.NoError(t, err)

	content, err := a.Parse(newTestPage())
	require.NoError(t, err)
	require.Equal(t, "<h1>Demo</h1>", content)

	_, err = NewTplAdapter(filepath.Join(t.TempDir(), "missing.html"))
	require.Error(t, err)

	_, err = newTplAdapter(`{{ .Title `)
	require.Error(t, err)
}

func TestParseConcurrent(t *testing.T) {
	a, err := NewTplAdapter("")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := a.Parse(newTestPage())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

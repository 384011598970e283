package mdadapter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type mapResolver map[string]string

func (r mapResolver) AssetURL(path string) (string, bool) {
	url, ok := r[path]

	return url, ok
}

func TestRender(t *testing.T) {
	testCases := []struct {
		name        string
		source      string
		resolver    AssetResolver
		wantTitle   string
		wantSummary string
		contains    []string
		notContains []string
	}{
		{
			name:     "Plain markdown",
			source:   "# Demo\n\nSome text\n",
			contains: []string{"<h1>Demo</h1>", "<p>Some text</p>"},
		},
		{
			name: "Front matter",
			source: `---
title: Demo plugin
summary: Adds a demo
---
# Heading
`,
			wantTitle:   "Demo plugin",
			wantSummary: "Adds a demo",
			contains:    []string{"<h1>Heading</h1>"},
			notContains: []string{"title:"},
		},
		{
			name:     "Known asset",
			source:   "Load {{asset: css/app.css}} first\n",
			resolver: mapResolver{"css/app.css": "/media/plugins/demo/css/app.css"},
			contains: []string{`<a class="asset" href="/media/plugins/demo/css/app.css">css/app.css</a>`},
		},
		{
			name:     "Unknown asset",
			source:   "Load {{asset: missing.js}}\n",
			resolver: mapResolver{},
			contains: []string{`<span class="asset-missing">missing.js</span>`},
		},
		{
			name:     "No resolver",
			source:   "{{ asset: a.js }}\n",
			contains: []string{`<span class="asset-missing">a.js</span>`},
		},
		{
			name:        "Not a directive",
			source:      "Braces {like this} stay\n",
			contains:    []string{"{like this}"},
			notContains: []string{"asset"},
		},
	}

	a := NewMDAdapter()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := a.Render([]byte(tc.source), tc.resolver)
			require.NoError(t, err)
			require.Equal(t, tc.wantTitle, doc.Title)
			require.Equal(t, tc.wantSummary, doc.Summary)

			for _, s := range tc.contains {
				require.Contains(t, string(doc.HTML), s)
			}

			for _, s := range tc.notContains {
				require.NotContains(t, string(doc.HTML), s)
			}
		})
	}
}

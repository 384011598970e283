package entity

import "html/template"

type PageAsset struct {
	Path string // Asset key
	URL  string // Public URL
}

// PluginPage is everything a plugin page template is executed with.
type PluginPage struct {
	URL     string
	Plugin  *Plugin
	Title   string // Front matter title, falls back to the manifest title
	Summary string
	Content template.HTML // Rendered README
	Assets  []PageAsset
}

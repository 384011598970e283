package entity

// Plugin is an installed extension unit with its own root directory.
type Plugin struct {
	Name        string // Directory name, used in public URLs
	Title       string // Title from the manifest, falls back to Name
	Description string
	Version     string
	Root        string // Plugin source directory
	MediaRoot   string // Public directory the plugin assets are published to
	Readme      string // Path to the README file, empty if the plugin has none
	Extends     Extension
}

// Extension holds what a plugin declares in its manifest.
type Extension struct {
	Assets AssetSource // nil when the manifest has no assets entry
}

// Declaration is one declared asset. An empty Key marks a positional entry
// whose public path is derived from Root.
type Declaration struct {
	Key  string
	Root string
}

type Declarations []Declaration

// AssetSource produces declared assets on demand.
type AssetSource interface {
	Assets() (Declarations, error)
}

func (d Declarations) Assets() (Declarations, error) {
	return d, nil
}

// AssetsFunc defers building the declaration list until discovery needs it.
type AssetsFunc func() (Declarations, error)

func (f AssetsFunc) Assets() (Declarations, error) {
	return f()
}

package entity

import (
	"io"
	"time"
)

// FileResponse is a published asset ready to be streamed to a client.
// The caller owns Content and must close it.
type FileResponse struct {
	Plugin   string
	Path     string // Public path inside the plugin namespace
	Root     string // Published file location
	MIMEType string
	Size     int64
	ModTime  time.Time
	Content  io.ReadSeekCloser
}

func (r *FileResponse) Close() error {
	if r.Content == nil {
		return nil
	}

	return r.Content.Close()
}

type AssetCounter struct {
	Path    string `yaml:"path"`
	Counter int64  `yaml:"counter"`
}

type PluginCounters struct {
	Plugin string         `yaml:"plugin"`
	Assets []AssetCounter `yaml:"assets"`
}

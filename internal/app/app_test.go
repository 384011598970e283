package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignalsBeforeStart(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "config.yml"))

	require.NotPanics(t, a.Reload)
	require.NotPanics(t, a.Dump)
	require.NotPanics(t, a.Stop)
}

func TestSignalsAfterStart(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yml")
	cfg := "listen: 127.0.0.1:0\n" +
		"log_level: error\n" +
		"plugins:\n  dir: " + filepath.Join(dir, "plugins") + "\n" +
		"media:\n  dir: " + filepath.Join(dir, "media") + "\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(cfg), 0o644))

	a := New(cfgFile)
	a.Start()
	t.Cleanup(a.Stop)

	require.True(t, a.started())
	require.NotPanics(t, a.Reload)
	require.NotPanics(t, a.Dump)
}

package httphandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jgivc/pluginmedia/internal/common"
	"github.com/jgivc/pluginmedia/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type fakeAssets struct {
	fs afero.Fs
}

func (a *fakeAssets) Resolve(_ context.Context, pluginName, p string) (*entity.FileResponse, error) {
	if pluginName != "demo" {
		return nil, common.ErrPluginNotFound
	}
	if p == "broken.js" {
		return nil, errors.New("disk failure")
	}

	f, err := a.fs.Open("/media/demo/" + p)
	if err != nil {
		return nil, common.ErrAssetNotFound
	}

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return &entity.FileResponse{
		Plugin:   pluginName,
		Path:     p,
		MIMEType: "text/javascript; charset=utf-8",
		Size:     st.Size(),
		ModTime:  st.ModTime(),
		Content:  f,
	}, nil
}

type fakeCounters struct {
	counters map[string]int64
	disabled bool
}

func (c *fakeCounters) IncAssetCounter(_ context.Context, _, p string) (int64, error) {
	if c.disabled {
		return 0, nil
	}
	c.counters[p]++

	return c.counters[p], nil
}

func (c *fakeCounters) GetPluginCounters(_ context.Context, _ string) (map[string]int64, error) {
	if c.disabled {
		return nil, common.ErrCountersDisabled
	}

	return c.counters, nil
}

type fakePages struct{}

func (fakePages) GetPage(_ context.Context, pluginName string) (string, error) {
	switch pluginName {
	case "demo":
		return "<h1>demo</h1>", nil
	case "broken":
		return "", errors.New("template failure")
	}

	return "", common.ErrPluginNotFound
}

type fakeRegistry struct {
	plugins []*entity.Plugin
	removed map[string][]string
	err     error
}

func (r *fakeRegistry) Reload(context.Context) ([]*entity.Plugin, error) {
	return r.plugins, r.err
}

func (r *fakeRegistry) Clean(context.Context) (map[string][]string, error) {
	return r.removed, r.err
}

func newTestLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestMux(counters *fakeCounters, registry *fakeRegistry) *http.ServeMux {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/media/demo/app.js", []byte("console.log(1)"), 0o644)
	fs.Chtimes("/media/demo/app.js", time.Now(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	log := newTestLog()
	mux := http.NewServeMux()
	mux.Handle("GET /media/plugins/{plugin}/{path...}", NewAssetHandler(&fakeAssets{fs: fs}, counters, log))
	mux.Handle("GET /plugins/{plugin}/{$}", NewPageHandler(fakePages{}, log))
	mux.Handle("GET /stat/plugins/{plugin}/{$}", NewCounterHandler(counters, log))
	mux.Handle("POST /clean/{$}", NewCleanHandler(registry, log))
	mux.Handle("POST /reload/{$}", NewReloadHandler(registry, log))

	return mux
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func TestAssetHandler(t *testing.T) {
	counters := &fakeCounters{counters: map[string]int64{}}
	mux := newTestMux(counters, &fakeRegistry{})

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"served", "/media/plugins/demo/app.js", http.StatusOK},
		{"unknown plugin", "/media/plugins/other/app.js", http.StatusNotFound},
		{"unknown asset", "/media/plugins/demo/missing.js", http.StatusNotFound},
		{"bad plugin name", "/media/plugins/.hidden/app.js", http.StatusBadRequest},
		{"internal error", "/media/plugins/demo/broken.js", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, http.MethodGet, tt.target)
			require.Equal(t, tt.status, rec.Code)
		})
	}

	rec := serve(mux, http.MethodGet, "/media/plugins/demo/app.js")
	require.Equal(t, "console.log(1)", rec.Body.String())
	require.Equal(t, "text/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("Last-Modified"))
	require.Equal(t, int64(2), counters.counters["app.js"])
}

func TestPageHandler(t *testing.T) {
	mux := newTestMux(&fakeCounters{}, &fakeRegistry{})

	rec := serve(mux, http.MethodGet, "/plugins/demo/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "<h1>demo</h1>", rec.Body.String())
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	req := httptest.NewRequest(http.MethodGet, "/plugins/demo/", nil)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	cached := httptest.NewRecorder()
	mux.ServeHTTP(cached, req)
	require.Equal(t, http.StatusNotModified, cached.Code)
	require.Empty(t, cached.Body.String())

	require.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/plugins/missing/").Code)
	require.Equal(t, http.StatusInternalServerError, serve(mux, http.MethodGet, "/plugins/broken/").Code)
}

func TestCounterHandler(t *testing.T) {
	counters := &fakeCounters{counters: map[string]int64{"app.js": 3}}
	mux := newTestMux(counters, &fakeRegistry{})

	rec := serve(mux, http.MethodGet, "/stat/plugins/demo/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"app.js": 3}`, rec.Body.String())

	counters.disabled = true
	require.Equal(t, http.StatusNotImplemented, serve(mux, http.MethodGet, "/stat/plugins/demo/").Code)
}

func TestCleanHandler(t *testing.T) {
	registry := &fakeRegistry{removed: map[string][]string{"b": {"x.js"}, "a": {"y.js", "z"}}}
	mux := newTestMux(&fakeCounters{}, registry)

	rec := serve(mux, http.MethodPost, "/clean/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "a: 2 removed\nb: 1 removed\n", rec.Body.String())

	registry.removed = nil
	require.Equal(t, "nothing to clean\n", serve(mux, http.MethodPost, "/clean/").Body.String())

	require.Equal(t, http.StatusMethodNotAllowed, serve(mux, http.MethodGet, "/clean/").Code)
}

func TestReloadHandler(t *testing.T) {
	registry := &fakeRegistry{plugins: []*entity.Plugin{{Name: "demo", Root: "/p/demo"}}}
	mux := newTestMux(&fakeCounters{}, registry)

	rec := serve(mux, http.MethodPost, "/reload/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "demo -> /p/demo\n", rec.Body.String())

	tests := []struct {
		err    error
		status int
	}{
		{common.ErrScanAlreadyStarted, http.StatusConflict},
		{common.ErrNoPluginsFound, http.StatusNotFound},
		{errors.New("permission denied"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		registry.err = tt.err
		require.Equal(t, tt.status, serve(mux, http.MethodPost, "/reload/").Code, tt.err.Error())
	}
}

func TestWithRequestID(t *testing.T) {
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), newTestLog())

	rec := serve(h, http.MethodGet, "/")
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

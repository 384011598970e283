package httphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/pluginmedia/internal/common"
	"github.com/jgivc/pluginmedia/internal/entity"
	"github.com/jgivc/pluginmedia/internal/util"
)

const (
	RequestIDHeader = "X-Request-ID"
)

var (
	pluginNameRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

type AssetService interface {
	Resolve(ctx context.Context, pluginName, path string) (*entity.FileResponse, error)
}

type CounterService interface {
	IncAssetCounter(ctx context.Context, plugin, path string) (int64, error)
	GetPluginCounters(ctx context.Context, plugin string) (map[string]int64, error)
}

type PageService interface {
	GetPage(ctx context.Context, pluginName string) (string, error)
}

type RegistryService interface {
	Reload(ctx context.Context) ([]*entity.Plugin, error)
	Clean(ctx context.Context) (map[string][]string, error)
}

func NewAssetHandler(srv AssetService, counters CounterService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "AssetHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		plugin := r.PathValue("plugin")
		if !pluginNameRegexp.MatchString(plugin) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		resp, err := srv.Resolve(r.Context(), plugin, r.PathValue("path"))
		if err != nil {
			switch {
			case errors.Is(err, common.ErrPluginNotFound), errors.Is(err, common.ErrAssetNotFound):
				http.Error(w, "Cannot find asset", http.StatusNotFound)
			default:
				log.Error("Cannot resolve asset", slog.String("plugin", plugin), slog.String("path", r.PathValue("path")), slog.Any("error", err))
				http.Error(w, "Cannot get asset", http.StatusInternalServerError)
			}

			return
		}
		defer resp.Close()

		if resp.MIMEType != "" {
			w.Header().Set("Content-Type", resp.MIMEType)
		}

		http.ServeContent(w, r, path.Base(resp.Path), resp.ModTime, resp.Content)

		counter, err := counters.IncAssetCounter(r.Context(), resp.Plugin, resp.Path)
		if err != nil {
			return
		}

		log.Debug("Serve asset", slog.String("plugin", resp.Plugin), slog.String("path", resp.Path), slog.Int64("counter", counter))
	}
}

func NewPageHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PageHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		plugin := r.PathValue("plugin")
		if !pluginNameRegexp.MatchString(plugin) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		content, err := srv.GetPage(r.Context(), plugin)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrPluginNotFound):
				http.Error(w, "Cannot find plugin", http.StatusNotFound)
			default:
				log.Error("Cannot get page", slog.String("plugin", plugin), slog.Any("error", err))
				http.Error(w, "Cannot get page", http.StatusInternalServerError)
			}

			return
		}

		etag := util.ETag(content)
		w.Header().Set("ETag", etag)
		if util.MatchETag(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(content))
	}
}

func NewCounterHandler(srv CounterService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CounterHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		plugin := r.PathValue("plugin")
		if !pluginNameRegexp.MatchString(plugin) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		counters, err := srv.GetPluginCounters(r.Context(), plugin)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrCountersDisabled):
				http.Error(w, "Counters are disabled", http.StatusNotImplemented)
			default:
				http.Error(w, "Cannot get counters", http.StatusInternalServerError)
			}

			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(counters); err != nil {
			log.Error("Cannot encode counters", slog.Any("error", err))
		}
	}
}

func NewCleanHandler(srv RegistryService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CleanHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := srv.Clean(r.Context())
		if err != nil {
			log.Error("Cannot clean media", slog.Any("error", err))
			http.Error(w, "Cannot clean media", http.StatusInternalServerError)

			return
		}

		names := make([]string, 0, len(removed))
		for name := range removed {
			names = append(names, name)
		}
		slices.Sort(names)

		buf := bytes.Buffer{}
		for _, name := range names {
			buf.WriteString(fmt.Sprintf("%s: %d removed\n", name, len(removed[name])))
		}

		if buf.Len() == 0 {
			buf.WriteString("nothing to clean\n")
		}

		w.Write(buf.Bytes())
	}
}

func NewReloadHandler(srv RegistryService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ReloadHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		plugins, err := srv.Reload(r.Context())
		if err != nil {
			switch {
			case errors.Is(err, common.ErrScanAlreadyStarted):
				http.Error(w, "Plugin scan has already started", http.StatusConflict)
			case errors.Is(err, common.ErrNoPluginsFound):
				http.Error(w, "No plugins found", http.StatusNotFound)
			default:
				log.Error("Cannot reload plugins", slog.Any("error", err))
				http.Error(w, "Cannot reload plugins", http.StatusInternalServerError)
			}

			return
		}

		buf := bytes.Buffer{}
		for _, plugin := range plugins {
			buf.WriteString(fmt.Sprintf("%s -> %s\n", plugin.Name, plugin.Root))
		}

		w.Write(buf.Bytes())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// WithRequestID tags every request with an id and logs it once served.
func WithRequestID(next http.Handler, log *slog.Logger) http.Handler {
	log = log.With(slog.String("handler", "RequestLog"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		log.Info("Request",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

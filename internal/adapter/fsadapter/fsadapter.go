package fsadapter

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jgivc/pluginmedia/internal/config"
	"github.com/spf13/afero"
)

const (
	mimeTypeUnknown       = "application/octet-stream"
	mimeTypeCheckPartSize = 512

	dirPerm = 0o755
)

type fsAdapter struct {
	fs   afero.Fs
	cfg  *config.MediaConfig
	log  *slog.Logger
	link bool
}

func NewFSAdapter(cfg *config.MediaConfig, log *slog.Logger) (*fsAdapter, error) {
	return NewFSAdapterWithFS(afero.NewOsFs(), cfg, log)
}

func NewFSAdapterWithFS(fs afero.Fs, cfg *config.MediaConfig, log *slog.Logger) (*fsAdapter, error) {
	switch cfg.PublishMode {
	case config.PublishModeLink, config.PublishModeCopy:
	default:
		return nil, fmt.Errorf("unknown publish mode: %q", cfg.PublishMode)
	}

	return &fsAdapter{
		fs:   fs,
		cfg:  cfg,
		log:  log.With(slog.String("item", "FSAdapter")),
		link: cfg.PublishMode == config.PublishModeLink,
	}, nil
}

func (a *fsAdapter) Fs() afero.Fs {
	return a.fs
}

// Index lists every file and directory below root, recursively, as slash
// separated paths relative to root. A missing root yields an empty list.
func (a *fsAdapter) Index(root string) ([]string, error) {
	if !a.IsDir(root) {
		return nil, nil
	}

	var paths []string
	err := afero.Walk(a.fs, root, func(p string, _ fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot index %s: %w", root, err)
	}

	return paths, nil
}

// Files is Index restricted to regular files. Symlinks are followed.
func (a *fsAdapter) Files(root string) ([]string, error) {
	paths, err := a.Index(root)
	if err != nil {
		return nil, err
	}

	files := paths[:0]
	for _, p := range paths {
		if a.IsFile(filepath.Join(root, filepath.FromSlash(p))) {
			files = append(files, p)
		}
	}

	return files, nil
}

func (a *fsAdapter) IsFile(p string) bool {
	stat, err := a.fs.Stat(p)
	if err != nil {
		return false
	}

	return stat.Mode().IsRegular()
}

// IsDir does not follow symlinks, so a published link to a file is never a
// directory.
func (a *fsAdapter) IsDir(p string) bool {
	stat, err := a.lstat(p)
	if err != nil {
		return false
	}

	return stat.IsDir()
}

func (a *fsAdapter) Exists(p string) bool {
	_, err := a.lstat(p)

	return err == nil
}

func (a *fsAdapter) Remove(p string) error {
	if err := a.fs.Remove(p); err != nil {
		return fmt.Errorf("cannot remove file %s: %w", p, err)
	}

	return nil
}

func (a *fsAdapter) RemoveAll(p string) error {
	if err := a.fs.RemoveAll(p); err != nil {
		return fmt.Errorf("cannot remove dir %s: %w", p, err)
	}

	return nil
}

// Publish makes src available at dst. It creates a symlink when the
// filesystem supports it and link mode is on, otherwise it copies. An
// existing dst is left alone, except a copy older than its source.
func (a *fsAdapter) Publish(src, dst string) error {
	log := a.log.With(slog.String("src", src), slog.String("dst", dst))

	refresh := false
	if stat, err := a.lstat(dst); err == nil {
		if !a.isOutdatedCopy(src, stat) {
			return nil
		}
		log.Debug("Refresh outdated copy")
		refresh = true
	}

	if err := a.fs.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return fmt.Errorf("cannot create dir for %s: %w", dst, err)
	}

	if a.link {
		if linker, ok := a.fs.(afero.Linker); ok {
			// A symlink cannot replace an existing file.
			if refresh {
				if err := a.fs.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("cannot remove outdated copy %s: %w", dst, err)
				}
			}

			err := linker.SymlinkIfPossible(src, dst)
			if err == nil || os.IsExist(err) {
				return nil
			}
			log.Debug("Cannot create symlink, fall back to copy", slog.Any("error", err))
		}
	}

	if err := a.copyFile(src, dst); err != nil {
		return fmt.Errorf("cannot publish %s: %w", src, err)
	}

	return nil
}

func (a *fsAdapter) Open(p string) (afero.File, error) {
	return a.fs.Open(p)
}

func (a *fsAdapter) Stat(p string) (fs.FileInfo, error) {
	return a.fs.Stat(p)
}

func (a *fsAdapter) ReadFile(p string) ([]byte, error) {
	return afero.ReadFile(a.fs, p)
}

func (a *fsAdapter) MIMEType(filePath string) (string, error) {
	if ext := filepath.Ext(filePath); ext != "" {
		if mimeType := mime.TypeByExtension(ext); mimeType != "" {
			return mimeType, nil
		}
	}

	file, err := a.fs.Open(filePath)
	if err != nil {
		return mimeTypeUnknown, err
	}
	defer file.Close()

	buffer := make([]byte, mimeTypeCheckPartSize)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return mimeTypeUnknown, err
	}

	return http.DetectContentType(buffer[:n]), nil
}

func (a *fsAdapter) isOutdatedCopy(src string, dstStat fs.FileInfo) bool {
	if !dstStat.Mode().IsRegular() {
		return false
	}

	srcStat, err := a.fs.Stat(src)
	if err != nil {
		return false
	}

	return srcStat.ModTime().After(dstStat.ModTime()) || srcStat.Size() != dstStat.Size()
}

// copyFile writes to a temp file in the target dir and renames it in place,
// so readers never see a partial copy.
func (a *fsAdapter) copyFile(src, dst string) error {
	in, err := a.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	stat, err := in.Stat()
	if err != nil {
		return err
	}

	if !stat.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", src)
	}

	tmp, err := afero.TempFile(a.fs, filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = io.Copy(tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err == nil {
		err = a.fs.Chtimes(tmpName, stat.ModTime(), stat.ModTime())
	}

	if err == nil {
		err = a.fs.Rename(tmpName, dst)
	}

	if err != nil {
		if rerr := a.fs.Remove(tmpName); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			a.log.Error("Cannot remove temp file", slog.String("path", tmpName), slog.Any("error", rerr))
		}

		return err
	}

	return nil
}

func (a *fsAdapter) lstat(p string) (fs.FileInfo, error) {
	if lstater, ok := a.fs.(afero.Lstater); ok {
		stat, _, err := lstater.LstatIfPossible(p)

		return stat, err
	}

	return a.fs.Stat(p)
}

package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
	"github.com/accessful-ai/webrtc-audio-processing/fs"
)

// Fetcher downloads release assets and unpacks their libraries.
type Fetcher struct {
	fs          billy.Filesystem
	client      *http.Client
	downloadDir string
	logger      *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for downloads. The default is
// http.DefaultClient: no timeout, default redirect policy.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithDownloadDir sets where downloaded archives are kept.
func WithDownloadDir(dir string) Option {
	return func(f *Fetcher) {
		if dir != "" {
			f.downloadDir = dir
		}
	}
}

// WithFilesystem sets the filesystem downloads and extraction write to.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(f *Fetcher) {
		if fsys != nil {
			f.fs = fsys
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New returns a Fetcher writing to the host filesystem.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		fs:          fs.Host(),
		client:      http.DefaultClient,
		downloadDir: os.TempDir(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ArchivePath is where the downloaded asset is stored.
func (f *Fetcher) ArchivePath(asset ReleaseAsset) string {
	return filepath.Join(f.downloadDir, asset.Name)
}

// FetchAndExtract downloads asset and extracts its static libraries and debug
// symbols below destRoot, returning the relative paths written.
//
// A response other than 200 fails before anything is extracted and destRoot is
// not created. Extraction goes through a staging directory; if it fails, the
// staging directory and the downloaded archive are removed and destRoot is left
// as it was.
func (f *Fetcher) FetchAndExtract(ctx context.Context, asset ReleaseAsset, destRoot string) ([]string, error) {
	archive, err := f.Download(ctx, asset)
	if err != nil {
		return nil, err
	}

	written, err := f.Extract(ctx, archive, destRoot)
	if err != nil {
		if rmErr := f.fs.Remove(archive); rmErr != nil && !os.IsNotExist(rmErr) {
			f.logger.Warn("failed to remove downloaded archive",
				zap.String("path", archive),
				zap.Error(rmErr))
		}
		return nil, err
	}
	return written, nil
}

// Download performs a single GET of the asset and stores the body verbatim.
// It returns the path of the stored archive.
func (f *Fetcher) Download(ctx context.Context, asset ReleaseAsset) (string, error) {
	url := asset.URL()
	f.logger.Info("downloading release asset", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		e := errors.Download(url, 0)
		e.Err = err
		return "", e
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", errors.Download(url, resp.StatusCode)
	}

	if err := f.fs.MkdirAll(f.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir %s: %w", f.downloadDir, err)
	}

	dest := f.ArchivePath(asset)
	out, err := f.fs.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}

	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = f.fs.Remove(dest)
		e := errors.Download(url, resp.StatusCode)
		e.Err = err
		return "", e
	}

	f.logger.Debug("release asset stored", zap.String("path", dest), zap.Int64("bytes", n))
	return dest, nil
}

// Extract unpacks the kept members of the zip archive at archivePath below destRoot.
func (f *Fetcher) Extract(ctx context.Context, archivePath, destRoot string) ([]string, error) {
	file, err := f.fs.Open(archivePath)
	if err != nil {
		return nil, errors.Archive("fetch.extract", err)
	}
	defer file.Close()

	info, err := f.fs.Stat(archivePath)
	if err != nil {
		return nil, errors.Archive("fetch.extract", err)
	}

	reader, err := zip.NewReader(file, info.Size())
	if err != nil {
		return nil, errors.Archive("fetch.extract", fmt.Errorf("open %s: %w", archivePath, err))
	}

	parent := filepath.Dir(destRoot)
	if err := f.fs.MkdirAll(parent, 0o755); err != nil {
		return nil, errors.Archive("fetch.extract", err)
	}

	staging, err := util.TempDir(f.fs, parent, ".extract-")
	if err != nil {
		return nil, errors.Archive("fetch.extract", fmt.Errorf("create staging directory: %w", err))
	}
	defer func() { _ = util.RemoveAll(f.fs, staging) }()

	var written []string
	for _, entry := range Entries(reader) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Kept() {
			continue
		}

		rel, err := entry.LocalPath()
		if err != nil {
			return nil, errors.Archive("fetch.extract", err)
		}

		if entry.IsDir {
			if err := f.fs.MkdirAll(filepath.Join(staging, rel), 0o755); err != nil {
				return nil, errors.Archive("fetch.extract", err)
			}
			continue
		}

		f.logger.Debug("creating file", zap.String("path", filepath.Join(destRoot, rel)))
		if err := f.writeEntry(entry, filepath.Join(staging, rel)); err != nil {
			return nil, errors.Archive("fetch.extract", err)
		}
		written = append(written, rel)
	}

	if err := f.promote(staging, destRoot); err != nil {
		return nil, errors.Archive("fetch.promote", err)
	}

	f.logger.Info("release asset extracted",
		zap.String("dest", destRoot),
		zap.Int("files", len(written)))
	return written, nil
}

func (f *Fetcher) writeEntry(entry ArchiveEntry, target string) error {
	if err := f.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", target, err)
	}

	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer in.Close()

	out, err := f.fs.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return out.Close()
}

// promote moves everything below staging into destRoot. When destRoot did not
// exist beforehand it is removed again if a move fails.
func (f *Fetcher) promote(staging, destRoot string) error {
	existed, err := fs.Exists(f.fs, destRoot)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(destRoot, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", destRoot, err)
	}

	err = util.Walk(f.fs, staging, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == staging {
			return nil
		}

		rel, err := filepath.Rel(staging, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destRoot, rel)

		if info.IsDir() {
			return f.fs.MkdirAll(target, 0o755)
		}
		if err := f.fs.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("replace %s: %w", target, err)
		}
		return f.fs.Rename(path, target)
	})
	if err != nil {
		if !existed {
			_ = util.RemoveAll(f.fs, destRoot)
		}
		return fmt.Errorf("move extracted files into %s: %w", destRoot, err)
	}
	return nil
}

// Package source materializes the native library's source tree for a build.
//
// The bundled tree (a git submodule checked in next to the crate) is copied into
// the build output directory so the native build can write into it freely. The
// copy is never updated in place: a previous copy is removed in full before the
// tree is copied again.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
	"github.com/accessful-ai/webrtc-audio-processing/fs"
)

// Provisioned is the working copy of the native source used for the build.
type Provisioned struct {
	// Root is the absolute path of the copy inside the output directory.
	Root string
}

// Provisioner copies the bundled source tree into the output directory.
type Provisioner struct {
	fs     billy.Filesystem
	outDir string
	logger *zap.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provisioner) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvisioner returns a Provisioner writing below outDir on fsys.
func NewProvisioner(fsys billy.Filesystem, outDir string, opts ...Option) *Provisioner {
	p := &Provisioner{
		fs:     fsys,
		outDir: outDir,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Destination returns where Ensure places the copy of bundled.
func (p *Provisioner) Destination(bundled string) string {
	return filepath.Join(p.outDir, filepath.Base(filepath.Clean(bundled)))
}

// Check verifies that bundled exists and has at least one entry.
func (p *Provisioner) Check(bundled string) error {
	entries, err := p.fs.ReadDir(bundled)
	if err != nil {
		if os.IsNotExist(err) {
			e := errors.EmptySource(bundled)
			e.Err = err
			return e
		}
		return fmt.Errorf("read bundled source %s: %w", bundled, err)
	}
	if len(entries) == 0 {
		return errors.EmptySource(bundled)
	}
	return nil
}

// Ensure replaces any previous copy of bundled in the output directory with a
// fresh, complete copy. An empty or missing bundled directory is an EMPTY_SOURCE
// error; any I/O failure aborts the copy.
func (p *Provisioner) Ensure(ctx context.Context, bundled string) (*Provisioned, error) {
	p.logger.Info("provisioning native source", zap.String("bundle", bundled))

	if err := p.Check(bundled); err != nil {
		return nil, err
	}

	dest := p.Destination(bundled)
	exists, err := fs.Exists(p.fs, dest)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("copying source tree",
		zap.String("from", bundled),
		zap.String("to", dest),
		zap.Bool("exists", exists))

	if exists {
		if err := util.RemoveAll(p.fs, dest); err != nil {
			return nil, fmt.Errorf("remove previous copy %s: %w", dest, err)
		}
	}

	if err := p.copyTree(ctx, bundled, dest); err != nil {
		return nil, err
	}

	p.logger.Info("native source provisioned", zap.String("root", dest))
	return &Provisioned{Root: dest}, nil
}

// copyTree copies src to dst, overwriting files and keeping modes and symlinks.
// A symlinked src is followed, so dst is always a real directory.
func (p *Provisioner) copyTree(ctx context.Context, src, dst string) error {
	src, err := fs.ResolveLink(p.fs, src)
	if err != nil {
		return err
	}

	err = util.Walk(p.fs, src, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return p.fs.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			return p.copySymlink(path, target)
		default:
			return p.copyFile(path, target, info.Mode().Perm())
		}
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (p *Provisioner) copyFile(src, dst string, perm os.FileMode) error {
	in, err := p.fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := p.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

func (p *Provisioner) copySymlink(src, dst string) error {
	target, err := p.fs.Readlink(src)
	if err != nil {
		return fmt.Errorf("readlink %s: %w", src, err)
	}
	if err := p.fs.Symlink(target, dst); err != nil {
		return fmt.Errorf("symlink %s: %w", dst, err)
	}
	return nil
}

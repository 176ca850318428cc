package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
)

// Exists reports whether path exists on fsys. Symlinks are not followed.
func Exists(fsys billy.Filesystem, path string) (bool, error) {
	_, err := fsys.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
}

// NonEmptyDir reports whether path is a directory with at least one entry.
// A missing path is not an error.
func NonEmptyDir(fsys billy.Filesystem, path string) (bool, error) {
	info, err := fsys.Stat(path)
	switch {
	case os.IsNotExist(err):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat %q: %w", path, err)
	case !info.IsDir():
		return false, nil
	}

	entries, err := fsys.ReadDir(path)
	if err != nil {
		return false, fmt.Errorf("read dir %q: %w", path, err)
	}
	return len(entries) > 0, nil
}

// maxLinkHops bounds ResolveLink so a symlink cycle fails instead of looping.
const maxLinkHops = 40

// ResolveLink follows path while it is a symlink and returns the first
// non-link path. Only the final element is resolved; a path that is not a
// symlink, or does not exist, is returned unchanged.
func ResolveLink(fsys billy.Filesystem, path string) (string, error) {
	for i := 0; i < maxLinkHops; i++ {
		info, err := fsys.Lstat(path)
		switch {
		case os.IsNotExist(err):
			return path, nil
		case err != nil:
			return "", fmt.Errorf("stat %q: %w", path, err)
		case info.Mode()&os.ModeSymlink == 0:
			return path, nil
		}

		target, err := fsys.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("readlink %q: %w", path, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		path = filepath.Clean(target)
	}
	return "", fmt.Errorf("resolve %q: too many levels of symbolic links", path)
}

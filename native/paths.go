// Package native produces the static webrtc-audio-processing library for the
// target platform, either by building the provisioned source with meson and
// ninja or by downloading the prebuilt release.
//
// Exactly one Strategy is selected per run; both report where the headers and
// libraries ended up as BuildPaths.
package native

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
	"github.com/accessful-ai/webrtc-audio-processing/fs"
)

// BuildPaths locates the installed native library.
type BuildPaths struct {
	// IncludePath is the header root handed to the compiler and binding generator.
	IncludePath string

	// LibPath holds the static libraries to link.
	LibPath string
}

// Validate checks that both directories exist and are not empty.
func (p BuildPaths) Validate(fsys billy.Filesystem) error {
	for _, dir := range []struct{ name, path string }{
		{"include path", p.IncludePath},
		{"library path", p.LibPath},
	} {
		if !filepath.IsAbs(dir.path) {
			return errors.Internal("native.paths", fmt.Sprintf("%s %q is not absolute", dir.name, dir.path))
		}
		ok, err := fs.NonEmptyDir(fsys, dir.path)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Internal("native.paths", fmt.Sprintf("%s %s is missing or empty", dir.name, dir.path))
		}
	}
	return nil
}

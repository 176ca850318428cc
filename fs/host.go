// Package fs holds the filesystem helpers shared by the provisioning steps.
//
// Steps take a billy.Filesystem so they can run against the host or an
// in-memory filesystem in tests.
package fs

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// hostFS is a billy.Filesystem that acts like the native filesystem:
// paths are used as given, absolute or relative to the working directory.
type hostFS struct {
	osfs.ChrootOS
}

// Chroot returns a new filesystem rooted at the provided path.
//
//nolint:ireturn // billy.Filesystem is an interface; signature is dictated by upstream.
func (h *hostFS) Chroot(path string) (billy.Filesystem, error) {
	return osfs.New(path), nil
}

// Root returns the root path for this filesystem.
func (h *hostFS) Root() string {
	return "/"
}

// Host returns the filesystem used for real provisioning runs.
//
//nolint:ireturn // callers hold the billy interface.
func Host() billy.Filesystem {
	return &hostFS{}
}

package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "/a/file", []byte("x"), 0o644))

	t.Run("existing file returns true", func(t *testing.T) {
		ok, err := Exists(fsys, "/a/file")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing file returns false without error", func(t *testing.T) {
		ok, err := Exists(fsys, "/a/missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestNonEmptyDir(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("/empty", 0o755))
	require.NoError(t, util.WriteFile(fsys, "/full/lib.a", []byte("!<arch>\n"), 0o644))

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"populated", "/full", true},
		{"empty", "/empty", false},
		{"missing", "/missing", false},
		{"regular file", "/full/lib.a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NonEmptyDir(fsys, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLink(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "/vendor/webrtc/meson.build", []byte("project()\n"), 0o644))
	require.NoError(t, fsys.Symlink("/vendor/webrtc", "/crate/abs"))
	require.NoError(t, fsys.Symlink("../vendor/webrtc", "/crate/rel"))
	require.NoError(t, fsys.Symlink("/crate/abs", "/crate/chained"))
	require.NoError(t, fsys.Symlink("/loop/b", "/loop/a"))
	require.NoError(t, fsys.Symlink("/loop/a", "/loop/b"))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain directory", "/vendor/webrtc", "/vendor/webrtc"},
		{"absolute link", "/crate/abs", "/vendor/webrtc"},
		{"relative link", "/crate/rel", "/vendor/webrtc"},
		{"link to link", "/crate/chained", "/vendor/webrtc"},
		{"missing", "/crate/missing", "/crate/missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLink(fsys, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("cycle", func(t *testing.T) {
		_, err := ResolveLink(fsys, "/loop/a")
		assert.Error(t, err)
	})
}

func TestHost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe")
	require.NoError(t, os.WriteFile(path, []byte("ok"), 0o644))

	host := Host()
	assert.Equal(t, "/", host.Root())

	data, err := util.ReadFile(host, path)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))

	ok, err := NonEmptyDir(host, dir)
	require.NoError(t, err)
	assert.True(t, ok)
}

package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
	"github.com/accessful-ai/webrtc-audio-processing/fs"
)

func writeTree(t *testing.T, fsys billy.Filesystem, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, util.WriteFile(fsys, path, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, fsys billy.Filesystem, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := util.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		data, readErr := util.ReadFile(fsys, path)
		if readErr != nil {
			return readErr
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestEnsure_CopiesTree(t *testing.T) {
	fsys := memfs.New()
	files := map[string]string{
		"meson.build":                           "project('webrtc-audio-processing')\n",
		"webrtc/modules/audio_processing/apm.h": "#pragma once\n",
		"webrtc/common_audio/fft.c":             "int fft(void) { return 0; }\n",
	}
	writeTree(t, fsys, "/crate/webrtc-audio-processing", files)

	p := NewProvisioner(fsys, "/out")
	got, err := p.Ensure(context.Background(), "/crate/webrtc-audio-processing")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/out", "webrtc-audio-processing"), got.Root)
	assert.Equal(t, files, readTree(t, fsys, got.Root))
}

func TestEnsure_SymlinkedSource(t *testing.T) {
	fsys := memfs.New()
	files := map[string]string{
		"meson.build":           "project('webrtc-audio-processing')\n",
		"webrtc/common_audio.c": "int x;\n",
	}
	writeTree(t, fsys, "/vendor/webrtc", files)
	require.NoError(t, fsys.MkdirAll("/crate", 0o755))
	require.NoError(t, fsys.Symlink("../vendor/webrtc", "/crate/webrtc-audio-processing"))

	got, err := NewProvisioner(fsys, "/out").Ensure(context.Background(), "/crate/webrtc-audio-processing")
	require.NoError(t, err)

	info, err := fsys.Lstat(got.Root)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "provisioned root is a real directory")
	assert.Zero(t, info.Mode()&os.ModeSymlink)
	assert.Equal(t, files, readTree(t, fsys, got.Root))

	// writes into the copy stay out of the bundled tree
	require.NoError(t, util.WriteFile(fsys, filepath.Join(got.Root, "build", "build.ninja"), []byte("rule cc\n"), 0o644))
	_, err = fsys.Stat("/vendor/webrtc/build")
	assert.True(t, os.IsNotExist(err))
}

func TestEnsure_ReplacesStaleCopy(t *testing.T) {
	fsys := memfs.New()
	writeTree(t, fsys, "/crate/webrtc-audio-processing", map[string]string{
		"meson.build": "v2\n",
	})
	writeTree(t, fsys, "/out/webrtc-audio-processing", map[string]string{
		"meson.build":     "v1\n",
		"stale/leftover":  "old build output\n",
		"lib/libfoo.a":    "!<arch>\n",
		"build/build.ini": "[ninja]\n",
	})

	p := NewProvisioner(fsys, "/out")
	got, err := p.Ensure(context.Background(), "/crate/webrtc-audio-processing")
	require.NoError(t, err)

	tree := readTree(t, fsys, got.Root)
	assert.Equal(t, []string{"meson.build"}, keys(tree))
	assert.Equal(t, "v2\n", tree["meson.build"])

	_, err = fsys.Stat("/out/webrtc-audio-processing/stale")
	assert.True(t, os.IsNotExist(err), "stale directory must not survive")
}

func TestEnsure_EmptySource(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("/crate/webrtc-audio-processing", 0o755))

	p := NewProvisioner(fsys, "/out")
	_, err := p.Ensure(context.Background(), "/crate/webrtc-audio-processing")

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEmptySource)
	assert.Contains(t, errors.Diagnostic(err), "clone this repository recursively")

	_, statErr := fsys.Stat("/out/webrtc-audio-processing")
	assert.True(t, os.IsNotExist(statErr), "nothing is copied for an empty source")
}

func TestEnsure_MissingSource(t *testing.T) {
	p := NewProvisioner(memfs.New(), "/out")
	_, err := p.Ensure(context.Background(), "/crate/missing")
	assert.ErrorIs(t, err, errors.ErrEmptySource)
}

func TestEnsure_CancelledContext(t *testing.T) {
	fsys := memfs.New()
	writeTree(t, fsys, "/crate/src", map[string]string{"a": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProvisioner(fsys, "/out").Ensure(ctx, "/crate/src")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnsure_HostFilesystem(t *testing.T) {
	root := t.TempDir()
	bundled := filepath.Join(root, "webrtc-audio-processing")
	out := filepath.Join(root, "out")

	require.NoError(t, os.MkdirAll(filepath.Join(bundled, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundled, "meson.build"), []byte("project()\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(bundled, "scripts", "gen.sh"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.MkdirAll(out, 0o755))

	got, err := NewProvisioner(fs.Host(), out).Ensure(context.Background(), bundled)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(got.Root, "meson.build"))
	require.NoError(t, err)
	assert.Equal(t, "project()\n", string(data))

	info, err := os.Stat(filepath.Join(got.Root, "scripts", "gen.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), "file modes are preserved")
}

func TestEnsure_HostFilesystemSymlinkedSource(t *testing.T) {
	root := t.TempDir()
	vendored := filepath.Join(root, "vendor", "webrtc")
	bundled := filepath.Join(root, "webrtc-audio-processing")
	out := filepath.Join(root, "out")

	require.NoError(t, os.MkdirAll(vendored, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vendored, "meson.build"), []byte("project()\n"), 0o644))
	require.NoError(t, os.Symlink(vendored, bundled))
	require.NoError(t, os.MkdirAll(out, 0o755))

	got, err := NewProvisioner(fs.Host(), out).Ensure(context.Background(), bundled)
	require.NoError(t, err)

	info, err := os.Lstat(got.Root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Zero(t, info.Mode()&os.ModeSymlink, "provisioned root must not point back at the bundled tree")

	data, err := os.ReadFile(filepath.Join(got.Root, "meson.build"))
	require.NoError(t, err)
	assert.Equal(t, "project()\n", string(data))
}

package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
)

func TestFetchOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    FetchOptions
		wantErr bool
	}{
		{"valid", FetchOptions{URL: "https://example.com/repo.git"}, false},
		{"missing url", FetchOptions{}, true},
		{"negative depth", FetchOptions{URL: "https://example.com/repo.git", ShallowDepth: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFetch_RefusesNonEmptyDestination(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "meson.build"), []byte("x"), 0o644))

	err := Fetch(context.Background(), dest, FetchOptions{URL: "https://example.com/repo.git"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "not empty")

	data, readErr := os.ReadFile(filepath.Join(dest, "meson.build"))
	require.NoError(t, readErr)
	assert.Equal(t, "x", string(data), "existing content is left untouched")
}

func TestFetch_InvalidRemote(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "webrtc-audio-processing")
	missing := filepath.Join(t.TempDir(), "no-such-repo")

	err := Fetch(context.Background(), dest, FetchOptions{URL: missing, Ref: "v1.3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clone")
}

func TestCandidateRefs(t *testing.T) {
	assert.Equal(t, []plumbing.ReferenceName{""}, candidateRefs(""))
	assert.Equal(t,
		[]plumbing.ReferenceName{"refs/heads/main"},
		candidateRefs("refs/heads/main"))
	assert.Equal(t,
		[]plumbing.ReferenceName{"refs/tags/v1.3", "refs/heads/v1.3"},
		candidateRefs("v1.3"))
}

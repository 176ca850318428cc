package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
)

// FetchOptions configures an upstream source fetch.
type FetchOptions struct {
	// URL is the REQUIRED upstream repository location.
	URL string

	// Ref is a tag or branch name, or a full reference ("refs/..."). Empty means HEAD.
	Ref string

	// ShallowDepth limits history; 0 clones everything. Defaults to 1.
	ShallowDepth int

	// Progress receives the remote's progress messages when non-nil.
	Progress io.Writer

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Validate checks that the options are usable.
func (o *FetchOptions) Validate() error {
	if o.URL == "" {
		return errors.InvalidConfig("upstream URL cannot be empty", nil)
	}
	if o.ShallowDepth < 0 {
		return errors.InvalidConfig("ShallowDepth cannot be negative", nil)
	}
	return nil
}

func (o *FetchOptions) applyDefaults() {
	if o.ShallowDepth == 0 {
		o.ShallowDepth = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Fetch clones the upstream repository, with submodules, into dest. It is the
// remediation for an EMPTY_SOURCE error and refuses to write into a directory
// that already has content.
func Fetch(ctx context.Context, dest string, opts FetchOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	opts.applyDefaults()

	entries, err := os.ReadDir(dest)
	switch {
	case err == nil && len(entries) > 0:
		return errors.InvalidConfig(fmt.Sprintf("destination %s is not empty", dest), nil)
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("read destination %s: %w", dest, err)
	}

	refs := candidateRefs(opts.Ref)
	var lastErr error
	for _, ref := range refs {
		opts.Logger.Info("cloning upstream source",
			zap.String("url", opts.URL),
			zap.String("ref", ref.String()),
			zap.String("dest", dest))

		lastErr = clone(ctx, dest, ref, opts)
		if lastErr == nil {
			return nil
		}
		if !stderrors.Is(lastErr, plumbing.ErrReferenceNotFound) {
			break
		}
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("clean failed clone %s: %w", dest, err)
		}
	}
	return fmt.Errorf("failed to clone %s: %w", opts.URL, lastErr)
}

func clone(ctx context.Context, dest string, ref plumbing.ReferenceName, opts FetchOptions) error {
	cloneOpts := &git.CloneOptions{
		URL:               opts.URL,
		ReferenceName:     ref,
		SingleBranch:      ref != "",
		Depth:             opts.ShallowDepth,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		Progress:          opts.Progress,
	}
	_, err := git.PlainCloneContext(ctx, dest, false, cloneOpts)
	return err
}

// candidateRefs expands a short ref into the references to try, tags first.
func candidateRefs(ref string) []plumbing.ReferenceName {
	switch {
	case ref == "":
		return []plumbing.ReferenceName{""}
	case strings.HasPrefix(ref, "refs/"):
		return []plumbing.ReferenceName{plumbing.ReferenceName(ref)}
	default:
		return []plumbing.ReferenceName{
			plumbing.NewTagReferenceName(ref),
			plumbing.NewBranchReferenceName(ref),
		}
	}
}

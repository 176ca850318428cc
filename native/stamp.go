package native

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pelletier/go-toml/v2"

	"github.com/accessful-ai/webrtc-audio-processing/fs"
)

// StampVersion is bumped whenever the digest layout changes.
const StampVersion = 1

// Stamp records the inputs of the last successful native step.
type Stamp struct {
	Version   int       `toml:"version"`
	Digest    string    `toml:"digest"`
	Strategy  string    `toml:"strategy"`
	Target    string    `toml:"target"`
	CreatedAt time.Time `toml:"created_at"`
}

// Matches reports whether s was written for the given digest by this stamp version.
func (s *Stamp) Matches(digest string) bool {
	return s != nil && s.Version == StampVersion && s.Digest == digest
}

// StampInputs are the values a stamp digest covers.
type StampInputs struct {
	Strategy    string
	Target      string
	Fingerprint []string

	// SourceDir is hashed file by file: relative path, mode and content.
	SourceDir string
}

// ComputeDigest hashes in deterministically. Every field is length-prefixed,
// and the source tree is visited in lexical order. VCS metadata is skipped.
func ComputeDigest(ctx context.Context, fsys billy.Filesystem, in StampInputs) (string, error) {
	h := sha256.New()

	writeField(h, []byte(fmt.Sprintf("v%d", StampVersion)))
	writeField(h, []byte(in.Strategy))
	writeField(h, []byte(in.Target))

	writeCount(h, len(in.Fingerprint))
	for _, f := range in.Fingerprint {
		writeField(h, []byte(f))
	}

	if in.SourceDir == "" {
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	root, err := fs.ResolveLink(fsys, in.SourceDir)
	if err != nil {
		return "", err
	}

	err = util.Walk(fsys, root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.Name() == ".git" {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		writeField(h, []byte(filepath.ToSlash(rel)))
		writeField(h, []byte(info.Mode().String()))

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := fsys.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			writeField(h, []byte(target))
			return nil
		}
		return hashFile(h, fsys, path, info.Size())
	})
	if err != nil {
		return "", fmt.Errorf("hash source tree %s: %w", in.SourceDir, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(h hash.Hash, fsys billy.Filesystem, path string, size int64) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	writeLength(h, uint64(size))
	n, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if n != size {
		return fmt.Errorf("%s changed while hashing", path)
	}
	return nil
}

func writeLength(h hash.Hash, n uint64) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], n)
	h.Write(prefix[:])
}

func writeField(h hash.Hash, data []byte) {
	writeLength(h, uint64(len(data)))
	h.Write(data)
}

func writeCount(h hash.Hash, n int) {
	writeLength(h, uint64(n))
}

// ReadStamp loads the stamp at path. A missing file yields nil and no error.
func ReadStamp(fsys billy.Filesystem, path string) (*Stamp, error) {
	data, err := util.ReadFile(fsys, path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stamp %s: %w", path, err)
	}

	var s Stamp
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("parse stamp %s: %w", path, err)
	}
	return &s, nil
}

// WriteStamp stores s at path, replacing any previous stamp.
func WriteStamp(fsys billy.Filesystem, path string, s Stamp) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode stamp: %w", err)
	}
	if err := util.WriteFile(fsys, path, data, 0o644); err != nil {
		return fmt.Errorf("write stamp %s: %w", path, err)
	}
	return nil
}

// RemoveStamp deletes the stamp at path if present.
func RemoveStamp(fsys billy.Filesystem, path string) error {
	if err := fsys.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stamp %s: %w", path, err)
	}
	return nil
}

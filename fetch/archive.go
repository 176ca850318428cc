package fetch

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// keptSuffixes are the only archive members written to disk.
var keptSuffixes = []string{".a", ".pdb"}

// ArchiveEntry is a read-only view of one member of a release archive.
type ArchiveEntry struct {
	// Name is the member name as stored in the archive.
	Name string

	// IsDir reports a directory member.
	IsDir bool

	file *zip.File
}

// Entries lists the members of r in archive order.
func Entries(r *zip.Reader) []ArchiveEntry {
	out := make([]ArchiveEntry, 0, len(r.File))
	for _, f := range r.File {
		out = append(out, ArchiveEntry{
			Name:  f.Name,
			IsDir: f.FileInfo().IsDir(),
			file:  f,
		})
	}
	return out
}

// Open returns a reader over the member's uncompressed bytes.
func (e ArchiveEntry) Open() (io.ReadCloser, error) {
	if e.file == nil {
		return nil, fmt.Errorf("archive entry %q has no content", e.Name)
	}
	return e.file.Open()
}

// Kept reports whether the entry is a static library or debug symbol file.
func (e ArchiveEntry) Kept() bool {
	for _, suffix := range keptSuffixes {
		if strings.HasSuffix(e.Name, suffix) {
			return true
		}
	}
	return false
}

// LocalPath converts the stored name into a relative path using the platform
// separator. Both '/' and '\' separate components. Names that would resolve
// outside the extraction root are rejected.
func (e ArchiveEntry) LocalPath() (string, error) {
	name := strings.ReplaceAll(e.Name, `\`, "/")
	if strings.HasPrefix(name, "/") || filepath.VolumeName(name) != "" || hasDriveLetter(name) {
		return "", fmt.Errorf("archive entry %q has an absolute path", e.Name)
	}

	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("archive entry %q escapes the destination", e.Name)
	}
	return filepath.FromSlash(cleaned), nil
}

func hasDriveLetter(name string) bool {
	return len(name) >= 2 && name[1] == ':' &&
		((name[0] >= 'a' && name[0] <= 'z') || (name[0] >= 'A' && name[0] <= 'Z'))
}

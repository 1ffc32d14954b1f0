// Package filelist resolves an upload source into the ordered list of files to upload.
package filelist

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bitrise-io/go-s3up/internal"
	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude matches every file below the source directory.
const DefaultInclude = "**/*"

// Entry is a regular file to upload.
type Entry struct {
	// Path is the absolute path of the file.
	Path string
	// Rel is the path relative to the source directory, slash separated.
	// For a single file source it is the file name.
	Rel  string
	Size int64
}

// List ...
type List struct {
	Root    string
	Entries []Entry
}

// TotalSize is the sum of the entry sizes.
func (l List) TotalSize() int64 {
	var total int64
	for _, e := range l.Entries {
		total += e.Size
	}
	return total
}

// Collector lists upload sources.
type Collector struct {
	os internal.OsProxy
}

// NewCollector ...
func NewCollector(osProxy internal.OsProxy) Collector {
	return Collector{os: osProxy}
}

// Collect lists the files of root. A regular file yields a one element list, a directory is walked
// with the include pattern (DefaultInclude when empty). Entries are ordered by relative path.
func (c Collector) Collect(root, include string) (List, error) {
	info, err := c.os.Stat(root)
	if err != nil {
		return List{}, fmt.Errorf("source: %w", err)
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return List{}, fmt.Errorf("source is not a regular file: %s", root)
		}
		return List{
			Root:    filepath.Dir(root),
			Entries: []Entry{{Path: root, Rel: filepath.Base(root), Size: info.Size()}},
		}, nil
	}

	if include == "" {
		include = DefaultInclude
	}
	if !doublestar.ValidatePattern(include) {
		return List{}, fmt.Errorf("invalid include pattern: %s", include)
	}

	fsys := c.os.DirFS(root)
	matches, err := doublestar.Glob(fsys, include, doublestar.WithNoFollow(), doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return List{}, fmt.Errorf("list %s: %w", root, err)
	}
	sort.Strings(matches)

	list := List{Root: root}
	for _, match := range matches {
		matchInfo, err := fs.Stat(fsys, match)
		if err != nil {
			return List{}, fmt.Errorf("stat %s: %w", match, err)
		}
		if !matchInfo.Mode().IsRegular() {
			continue
		}

		list.Entries = append(list.Entries, Entry{
			Path: filepath.Join(root, filepath.FromSlash(match)),
			Rel:  match,
			Size: matchInfo.Size(),
		})
	}
	return list, nil
}

// Package filesystem defines the common interface implemented by every
// filesystem parser in this library, along with the directory entry type
// they all return.
package filesystem

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned for operations a filesystem implementation
// recognizes but does not implement, such as reading file contents from
// classic HFS volumes.
var ErrUnsupported = errors.New("operation not supported")

// ErrNotFound is returned when a requested file or directory does not exist.
var ErrNotFound = errors.New("entry not found")

// EntryType distinguishes files from directories.
type EntryType int

const (
	EntryTypeFile EntryType = iota
	EntryTypeDirectory
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeFile:
		return "file"
	case EntryTypeDirectory:
		return "directory"
	default:
		return fmt.Sprintf("EntryType(%d)", int(t))
	}
}

// FileEntry describes a single file or directory inside a volume.
type FileEntry struct {
	// Name is the entry's name decoded to UTF-8.
	Name string
	// Path is the entry's full path from the volume root, "/" separated.
	Path string
	// Type marks the entry as a file or a directory.
	Type EntryType
	// Size is the logical size of the data fork in bytes. Zero for
	// directories.
	Size uint64
	// ID is the filesystem-native identifier for the entry: the extent
	// location for ISO 9660, the catalog node ID for HFS and HFS+.
	ID uint32
}

// IsDir reports whether the entry is a directory.
func (e FileEntry) IsDir() bool {
	return e.Type == EntryTypeDirectory
}

// ChildPath joins a directory's path with a child name.
func ChildPath(dir FileEntry, name string) string {
	if dir.Path == "" || dir.Path == "/" {
		return "/" + name
	}
	return dir.Path + "/" + name
}

// Filesystem is the read-only view over a parsed volume. Implementations
// exist for ISO 9660, HFS and HFS+.
type Filesystem interface {
	// VolumeName returns the volume's label.
	VolumeName() string
	// Root returns the entry for the root directory.
	Root() FileEntry
	// ListDirectory returns the entries inside the given directory.
	ListDirectory(dir FileEntry) ([]FileEntry, error)
	// ReadFile returns the full contents of the given file.
	ReadFile(file FileEntry) ([]byte, error)
	// ReadFileRange returns length bytes of the file starting at offset.
	// Reads past the end of the file are truncated.
	ReadFileRange(file FileEntry, offset uint64, length uint64) ([]byte, error)
}

// Lookup walks the entries of dir for one whose name matches name exactly.
func Lookup(fs Filesystem, dir FileEntry, name string) (FileEntry, error) {
	entries, err := fs.ListDirectory(dir)
	if err != nil {
		return FileEntry{}, err
	}
	for _, entry := range entries {
		if entry.Name == name {
			return entry, nil
		}
	}
	return FileEntry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

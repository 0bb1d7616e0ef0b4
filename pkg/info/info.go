// Package info defines the disc image format and filesystem enumerations
// and the DiscInfo record produced by identification.
package info

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/identify"
	"github.com/bgrewell/disc-kit/pkg/iso9660"
	"github.com/bgrewell/disc-kit/pkg/toc"
)

// Format is a supported disc image container format.
type Format int

const (
	FormatUnknown Format = iota
	// FormatImage is a cooked 2048-byte sector image (.iso, .toast).
	FormatImage
	// FormatBinCue is a raw binary image with a cue sheet (.bin, .cue).
	FormatBinCue
	// FormatCHD is a MAME Compressed Hunks of Data container (.chd).
	FormatCHD
	// FormatMDS is a Media Descriptor Sidecar pair (.mds, .mdf).
	FormatMDS
)

func (f Format) String() string {
	switch f {
	case FormatImage:
		return "ISO 9660"
	case FormatBinCue:
		return "BIN/CUE"
	case FormatCHD:
		return "CHD (Compressed Hunks of Data)"
	case FormatMDS:
		return "MDS/MDF"
	default:
		return "Unknown"
	}
}

// Extensions returns the file extensions associated with this format.
func (f Format) Extensions() []string {
	switch f {
	case FormatImage:
		return []string{"iso", "toast"}
	case FormatBinCue:
		return []string{"bin", "cue"}
	case FormatCHD:
		return []string{"chd"}
	case FormatMDS:
		return []string{"mds", "mdf"}
	default:
		return nil
	}
}

// FormatFromPath detects the container format from a file extension.
func FormatFromPath(path string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "iso", "toast":
		return FormatImage
	case "bin", "cue":
		return FormatBinCue
	case "chd":
		return FormatCHD
	case "mds", "mdf":
		return FormatMDS
	default:
		return FormatUnknown
	}
}

// SupportedExtensions lists every extension the identifier accepts.
func SupportedExtensions() []string {
	return []string{"iso", "toast", "bin", "cue", "chd", "mds", "mdf"}
}

// FilesystemType is the filesystem detected inside a disc image.
type FilesystemType int

const (
	FilesystemUnknown FilesystemType = iota
	FilesystemISO9660
	FilesystemHFS
	FilesystemHFSPlus
)

func (t FilesystemType) String() string {
	switch t {
	case FilesystemISO9660:
		return "ISO 9660"
	case FilesystemHFS:
		return "HFS"
	case FilesystemHFSPlus:
		return "HFS+"
	default:
		return "Unknown"
	}
}

// DiscInfo is everything identification learned about a disc image.
type DiscInfo struct {
	// Path to the disc image file.
	Path string
	// Detected container format.
	Format Format
	// Detected filesystem type.
	Filesystem FilesystemType
	// Volume label read from the filesystem, empty if unavailable.
	VolumeLabel string
	// Fields recovered from the filename.
	ParsedFilename identify.ParsedFilename
	// Best guess at the title.
	Title string
	// How the title was derived.
	Confidence identify.ConfidenceLevel
	// Primary volume descriptor, when an ISO 9660 filesystem was found.
	Descriptor *iso9660.PrimaryVolumeDescriptor
	// Table of contents, when track layout was available.
	TOC *toc.DiscTOC
	// True when the image holds only audio tracks.
	AudioOnly bool
}

// CoverArtPath returns the sidecar path where cover art for this disc
// would be stored, the image path with a .jpg extension.
func (d *DiscInfo) CoverArtPath() string {
	ext := filepath.Ext(d.Path)
	return strings.TrimSuffix(d.Path, ext) + ".jpg"
}

// HasCoverArt reports whether the cover art sidecar already exists.
func (d *DiscInfo) HasCoverArt() bool {
	return fileExists(d.CoverArtPath())
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

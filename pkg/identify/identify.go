// Package identify extracts title information from disc image filenames
// and normalizes volume labels for display.
package identify

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/helpers"
)

// ConfidenceLevel describes how trustworthy an identified title is.
type ConfidenceLevel int

const (
	// ConfidenceLow means the title was derived from the filename only.
	ConfidenceLow ConfidenceLevel = iota
	// ConfidenceMedium means the title came from container metadata.
	ConfidenceMedium
	// ConfidenceHigh means the title came from a clean volume label.
	ConfidenceHigh
)

func (c ConfidenceLevel) String() string {
	switch c {
	case ConfidenceHigh:
		return "High (volume label)"
	case ConfidenceMedium:
		return "Medium (metadata)"
	default:
		return "Low (filename)"
	}
}

// LabelIsUsable reports whether a volume label is clean enough to serve
// as a title on its own. Short or purely numeric labels are rejected.
func LabelIsUsable(label string) bool {
	return len(label) > 2 && !helpers.AllDigits(label)
}

// ParsedFilename holds the fields recovered from a disc image filename.
type ParsedFilename struct {
	// Cleaned title with tags and separators removed.
	Title string
	// Original filename without extension.
	Original string
	// Region code such as USA or Europe, if present.
	Region string
	// Disc number from a (Disc N) style tag, 0 if absent.
	DiscNumber int
	// Serial number from a [XXXX-NNNNN] style tag.
	Serial string
	// Version tag such as v1.1 or Rev A.
	Version string
}

var (
	regionPattern  = regexp.MustCompile(`(?i)\s*\((USA|Europe|Japan|World|En|Fr|De|Es|It|Ja|Ko|Zh|PAL|NTSC|NTSC-U|NTSC-J|PAL-E)[^)]*\)`)
	discPattern    = regexp.MustCompile(`(?i)\s*\((?:Disc|CD|DVD|Disk)\s*(\d+)[^)]*\)`)
	serialPattern  = regexp.MustCompile(`\s*\[([A-Z]{2,4}[PS]?-?\d{4,6})\]`)
	versionPattern = regexp.MustCompile(`(?i)\s*\((v\d+\.?\d*|Rev\s*[A-Z0-9]+)\)`)
	extraTags      = regexp.MustCompile(`\s*\([^)]+\)|\s*\[[^\]]+\]`)
)

// ParseFilename pulls title, region, disc number, serial and version
// information out of a disc image path. It never fails; fields that
// cannot be recognized are left at their zero values.
func ParseFilename(path string) ParsedFilename {
	base := filepath.Base(path)
	original := strings.TrimSuffix(base, filepath.Ext(base))

	parsed := ParsedFilename{Original: original}
	title := original

	if m := regionPattern.FindStringSubmatch(title); m != nil {
		parsed.Region = m[1]
		title = regionPattern.ReplaceAllString(title, "")
	}
	if m := discPattern.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			parsed.DiscNumber = n
		}
		title = discPattern.ReplaceAllString(title, "")
	}
	if m := serialPattern.FindStringSubmatch(title); m != nil {
		parsed.Serial = m[1]
		title = serialPattern.ReplaceAllString(title, "")
	}
	if m := versionPattern.FindStringSubmatch(title); m != nil {
		parsed.Version = m[1]
		title = versionPattern.ReplaceAllString(title, "")
	}

	// Anything still tagged in parentheses or brackets is noise.
	title = extraTags.ReplaceAllString(title, "")

	title = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(title)
	parsed.Title = helpers.CollapseSpaces(title)

	return parsed
}

// NormalizeVolumeLabel cleans up a raw volume label for display.
func NormalizeVolumeLabel(label string) string {
	return helpers.CollapseSpaces(strings.ReplaceAll(label, "_", " "))
}

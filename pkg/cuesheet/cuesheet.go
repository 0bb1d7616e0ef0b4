// Package cuesheet parses CUE sheets describing the track layout of raw
// .bin images. Only the commands that affect track geometry are
// interpreted; remarks, titles and performer metadata are ignored.
package cuesheet

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

// Track is a single TRACK command with its indexes.
type Track struct {
	// Number is the 1-based track number.
	Number int
	// Mode is the normalized track type, for example "MODE1/2352" or
	// "AUDIO".
	Mode string
	// Indexes maps INDEX numbers to frame offsets within the track's
	// file. INDEX 01 marks the start of track data.
	Indexes map[int]uint32
}

// StartFrame returns the frame offset of the track's data within its file.
// INDEX 01 wins; INDEX 00 is the pregap fallback.
func (t Track) StartFrame() uint32 {
	if frame, ok := t.Indexes[1]; ok {
		return frame
	}
	return t.Indexes[0]
}

// IsAudio reports whether the track is an audio track.
func (t Track) IsAudio() bool {
	return t.Mode == "AUDIO"
}

// IsData reports whether the track can hold a filesystem. CD+G tracks are
// audio with graphics subchannel data and carry none.
func (t Track) IsData() bool {
	return strings.HasPrefix(t.Mode, "MODE") || strings.HasPrefix(t.Mode, "CDI")
}

// RawSectorSize returns the frame size implied by the track mode.
func (t Track) RawSectorSize() uint32 {
	if t.Mode == "CDG" {
		return consts.CD_FRAME_SIZE
	}
	if idx := strings.LastIndex(t.Mode, "/"); idx >= 0 {
		if size, err := strconv.Atoi(t.Mode[idx+1:]); err == nil && size > 0 {
			return uint32(size)
		}
	}
	if t.IsAudio() {
		return consts.CD_SECTOR_SIZE_RAW
	}
	return consts.ISO9660_SECTOR_SIZE
}

// DataOffset returns the byte offset of the 2048 bytes of user data within
// each frame of the track. CDI frames carry an 8-byte subheader; raw
// 2352-byte frames carry sync and header bytes, with Mode 2 XA adding a
// subheader.
func (t Track) DataOffset() uint32 {
	if strings.HasPrefix(t.Mode, "CDI") {
		return 8
	}
	if t.RawSectorSize() != consts.CD_SECTOR_SIZE_RAW {
		return 0
	}
	if strings.HasPrefix(t.Mode, "MODE2") {
		return consts.CD_MODE2_DATA_OFFSET
	}
	return consts.CD_MODE1_DATA_OFFSET
}

// File is one FILE command with the tracks stored in it.
type File struct {
	// Path is the filename exactly as written in the CUE sheet.
	Path string
	// Type is the file type token, normally "BINARY".
	Type string
	// Tracks are the tracks stored in this file, in sheet order.
	Tracks []Track
}

// Sheet is a parsed CUE sheet.
type Sheet struct {
	Files []File
}

// Tracks returns every track in the sheet in order.
func (s *Sheet) Tracks() []Track {
	var tracks []Track
	for _, f := range s.Files {
		tracks = append(tracks, f.Tracks...)
	}
	return tracks
}

// FirstDataTrack returns the first data track and the file it lives in, or
// false when the sheet has no data tracks.
func (s *Sheet) FirstDataTrack() (File, Track, bool) {
	for _, f := range s.Files {
		for _, t := range f.Tracks {
			if t.IsData() {
				return f, t, true
			}
		}
	}
	return File{}, Track{}, false
}

// Parse parses the text of a CUE sheet.
func Parse(text string) (*Sheet, error) {
	sheet := &Sheet{}
	for lineno, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		fields := splitFields(line)
		if len(fields) == 0 {
			continue
		}
		command := strings.ToUpper(fields[0])
		switch command {
		case "FILE":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: FILE command missing filename", lineno+1)
			}
			fileType := "BINARY"
			if len(fields) >= 3 {
				fileType = strings.ToUpper(fields[2])
			}
			sheet.Files = append(sheet.Files, File{Path: fields[1], Type: fileType})
		case "TRACK":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: TRACK command missing number or mode", lineno+1)
			}
			if len(sheet.Files) == 0 {
				return nil, fmt.Errorf("line %d: TRACK before any FILE", lineno+1)
			}
			number, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid track number %q", lineno+1, fields[1])
			}
			file := &sheet.Files[len(sheet.Files)-1]
			file.Tracks = append(file.Tracks, Track{
				Number:  number,
				Mode:    strings.ToUpper(fields[2]),
				Indexes: map[int]uint32{},
			})
		case "INDEX":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: INDEX command missing number or time", lineno+1)
			}
			if len(sheet.Files) == 0 || len(sheet.Files[len(sheet.Files)-1].Tracks) == 0 {
				return nil, fmt.Errorf("line %d: INDEX before any TRACK", lineno+1)
			}
			number, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid index number %q", lineno+1, fields[1])
			}
			frames, err := ParseMSF(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineno+1, err)
			}
			file := &sheet.Files[len(sheet.Files)-1]
			track := &file.Tracks[len(file.Tracks)-1]
			track.Indexes[number] = frames
		default:
			// REM, TITLE, PERFORMER, PREGAP and friends are skipped.
		}
	}
	if len(sheet.Files) == 0 {
		return nil, fmt.Errorf("cue sheet has no FILE command")
	}
	if len(sheet.Tracks()) == 0 {
		return nil, fmt.Errorf("cue sheet has no tracks")
	}
	return sheet, nil
}

// ParseMSF converts a MM:SS:FF timestamp into a frame count at 75 frames
// per second.
func ParseMSF(msf string) (uint32, error) {
	parts := strings.Split(msf, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid MSF timestamp %q", msf)
	}
	var values [3]uint32
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid MSF timestamp %q: %w", msf, err)
		}
		values[i] = uint32(v)
	}
	return values[0]*60*consts.FRAMES_PER_SECOND + values[1]*consts.FRAMES_PER_SECOND + values[2], nil
}

// ResolveBinPath locates the data file referenced by a CUE sheet. Sheets
// frequently ship with stale FILE paths, so several fallbacks are tried:
// the path as written relative to the sheet, the bare filename, the
// filename's stem with common data extensions, and finally the sheet's own
// stem with the referenced extension.
func ResolveBinPath(cuePath string, filePath string) (string, error) {
	dir := filepath.Dir(cuePath)

	candidates := []string{
		filepath.Join(dir, filepath.FromSlash(strings.ReplaceAll(filePath, "\\", "/"))),
		filepath.Join(dir, filepath.Base(strings.ReplaceAll(filePath, "\\", "/"))),
	}

	base := filepath.Base(strings.ReplaceAll(filePath, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, ext := range []string{".bin", ".BIN", ".img", ".IMG"} {
		candidates = append(candidates, filepath.Join(dir, stem+ext))
	}

	cueBase := filepath.Base(cuePath)
	cueStem := strings.TrimSuffix(cueBase, filepath.Ext(cueBase))
	if ext := filepath.Ext(base); ext != "" {
		candidates = append(candidates, filepath.Join(dir, cueStem+ext))
	}
	for _, ext := range []string{".bin", ".BIN", ".img", ".IMG"} {
		candidates = append(candidates, filepath.Join(dir, cueStem+ext))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("data file %q referenced by %q not found", filePath, cuePath)
}

// splitFields tokenizes a CUE line, honoring double-quoted filenames.
func splitFields(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			if inQuotes {
				fields = append(fields, current.String())
				current.Reset()
			}
			inQuotes = !inQuotes
		case !inQuotes && (r == ' ' || r == '\t' || r == '\r'):
			if current.Len() > 0 {
				fields = append(fields, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		fields = append(fields, current.String())
	}
	return fields
}

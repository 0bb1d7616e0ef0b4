package chd

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// CHT2Tag identifies CD-ROM track metadata entries ("CHT2").
const CHT2Tag = 0x43485432

// maxMetadataEntries bounds the metadata chain walk against corrupt files.
const maxMetadataEntries = 256

// MetadataEntry is one entry of the CHD metadata chain.
type MetadataEntry struct {
	Tag   uint32
	Value []byte
}

// parseMetadata walks the metadata chain starting at offset.
func parseMetadata(source io.ReaderAt, offset uint64) ([]MetadataEntry, error) {
	var entries []MetadataEntry
	header := make([]byte, 16)

	for offset != 0 && len(entries) < maxMetadataEntries {
		if _, err := source.ReadAt(header, int64(offset)); err != nil {
			return nil, fmt.Errorf("failed to read metadata header: %w", err)
		}
		tag := binary.BigEndian.Uint32(header[0:4])
		length := binary.BigEndian.Uint32(header[4:8]) & 0x00FFFFFF
		next := binary.BigEndian.Uint64(header[8:16])

		value := make([]byte, length)
		if _, err := source.ReadAt(value, int64(offset)+16); err != nil {
			return nil, fmt.Errorf("failed to read metadata value: %w", err)
		}
		entries = append(entries, MetadataEntry{Tag: tag, Value: value})
		offset = next
	}
	return entries, nil
}

// Track describes one CD track from CHT2 metadata.
type Track struct {
	// Number is the 1-based track number.
	Number int
	// Type is the CHD track type tag, for example "MODE1_RAW" or
	// "AUDIO".
	Type string
	// Frames is the track length in frames.
	Frames uint32
	// FrameOffset is the cumulative frame offset of the track within the
	// hunk data.
	FrameOffset uint32
}

// IsData reports whether the track can hold a filesystem.
func (t Track) IsData() bool {
	return strings.HasPrefix(t.Type, "MODE1") || strings.HasPrefix(t.Type, "MODE2")
}

// IsAudio reports whether the track is an audio track.
func (t Track) IsAudio() bool {
	return t.Type == "AUDIO"
}

// DataOffset returns the byte offset of the 2048 bytes of user data within
// each 2448-byte frame of the track.
func (t Track) DataOffset() uint32 {
	if !strings.Contains(t.Type, "RAW") {
		return 0
	}
	if strings.HasPrefix(t.Type, "MODE2") {
		return 24
	}
	return 16
}

// parseTracks decodes CHT2 entries of the form
// "TRACK:n TYPE:t SUBTYPE:s FRAMES:f" and rebuilds cumulative frame
// offsets in track order.
func parseTracks(entries []MetadataEntry) []Track {
	var tracks []Track
	for _, entry := range entries {
		if entry.Tag != CHT2Tag {
			continue
		}
		if track, ok := parseCHT2(string(entry.Value)); ok {
			tracks = append(tracks, track)
		}
	}

	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].Number < tracks[j].Number
	})

	offset := uint32(0)
	for i := range tracks {
		tracks[i].FrameOffset = offset
		offset += tracks[i].Frames
	}
	return tracks
}

func parseCHT2(content string) (Track, bool) {
	var track Track
	for _, part := range strings.Fields(content) {
		key, value, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		switch key {
		case "TRACK":
			track.Number, _ = strconv.Atoi(strings.TrimRight(value, "\x00"))
		case "TYPE":
			track.Type = value
		case "FRAMES":
			track.Frames = parseUint32(value)
		}
	}
	return track, track.Number > 0
}

func parseUint32(s string) uint32 {
	v, err := strconv.ParseUint(strings.TrimRight(s, "\x00"), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

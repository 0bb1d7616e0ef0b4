// Package toc builds audio CD tables of contents and computes the disc
// identifiers used by online metadata databases.
package toc

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

// TrackEntry is one track's position as fed into TOC construction.
type TrackEntry struct {
	// Number is the 1-based track number.
	Number uint8
	// Offset is the track start in frames, unbiased.
	Offset uint32
	// Type is the track type string, for example "AUDIO".
	Type string
}

// DiscTOC is the table of contents of an audio or mixed-mode disc. All
// offsets carry the standard 150-frame pregap bias.
type DiscTOC struct {
	// FirstTrack is the first track number.
	FirstTrack uint8
	// LastTrack is the last track number.
	LastTrack uint8
	// LeadOut is the lead-out offset in frames.
	LeadOut uint32
	// TrackOffsets holds each track's biased start offset in frames.
	TrackOffsets []uint32
}

// FromTracks builds a TOC from track entries and the disc's total length
// in frames. Returns nil when there are no tracks.
func FromTracks(tracks []TrackEntry, totalFrames uint32) *DiscTOC {
	if len(tracks) == 0 {
		return nil
	}

	offsets := make([]uint32, len(tracks))
	for i, track := range tracks {
		offsets[i] = track.Offset + consts.PREGAP_FRAMES
	}
	return &DiscTOC{
		FirstTrack:   tracks[0].Number,
		LastTrack:    tracks[len(tracks)-1].Number,
		LeadOut:      totalFrames + consts.PREGAP_FRAMES,
		TrackOffsets: offsets,
	}
}

// MusicBrainzID computes the MusicBrainz disc ID: a SHA-1 over the first
// and last track numbers, the big-endian lead-out offset, and 99 big-endian
// track offset slots, encoded as unpadded URL-safe base64.
func (t *DiscTOC) MusicBrainzID() string {
	data := make([]byte, 0, 2+4+99*4)
	data = append(data, t.FirstTrack, t.LastTrack)
	data = appendUint32(data, t.LeadOut)
	for i := 0; i < 99; i++ {
		offset := uint32(0)
		if i < len(t.TrackOffsets) {
			offset = t.TrackOffsets[i]
		}
		data = appendUint32(data, offset)
	}

	digest := sha1.Sum(data)
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// FreeDBID computes the legacy FreeDB disc ID: a digit-sum checksum of the
// per-track offsets in seconds, packed with the disc length and track
// count into eight lowercase hex digits.
func (t *DiscTOC) FreeDBID() string {
	checksum := uint32(0)
	for _, offset := range t.TrackOffsets {
		checksum += digitSum(offset / consts.FRAMES_PER_SECOND)
	}

	totalSeconds := t.LeadOut / consts.FRAMES_PER_SECOND
	firstOffsetSeconds := uint32(0)
	if len(t.TrackOffsets) > 0 {
		firstOffsetSeconds = t.TrackOffsets[0] / consts.FRAMES_PER_SECOND
	}
	length := totalSeconds - firstOffsetSeconds

	id := (checksum%0xFF)<<24 | length<<8 | uint32(len(t.TrackOffsets))
	return fmt.Sprintf("%08x", id)
}

// TrackCount returns the number of tracks.
func (t *DiscTOC) TrackCount() uint8 {
	return t.LastTrack - t.FirstTrack + 1
}

// TotalSeconds returns the disc length in seconds.
func (t *DiscTOC) TotalSeconds() uint32 {
	return t.LeadOut / consts.FRAMES_PER_SECOND
}

// TotalTimeString returns the disc length formatted as MM:SS.
func (t *DiscTOC) TotalTimeString() string {
	seconds := t.TotalSeconds()
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// TOCString returns the disc layout in the "+"-joined form used for fuzzy
// MusicBrainz lookups: first track, track count, lead-out, then each
// offset.
func (t *DiscTOC) TOCString() string {
	parts := []string{
		strconv.Itoa(int(t.FirstTrack)),
		strconv.Itoa(int(t.TrackCount())),
		strconv.FormatUint(uint64(t.LeadOut), 10),
	}
	for _, offset := range t.TrackOffsets {
		parts = append(parts, strconv.FormatUint(uint64(offset), 10))
	}
	return strings.Join(parts, "+")
}

func appendUint32(data []byte, v uint32) []byte {
	return append(data, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// digitSum returns the sum of the decimal digits of n.
func digitSum(n uint32) uint32 {
	sum := uint32(0)
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}

// Package chd reads version 5 CHD (Compressed Hunks of Data) disc images:
// the header, the hunk map, zlib and lzma compressed hunks, and the CHT2
// track metadata describing the CD layout.
package chd

import (
	"fmt"
	"io"
	"os"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/reader"
)

// CHD is an open CHD image.
type CHD struct {
	source  io.ReaderAt
	closer  io.Closer
	header  *Header
	hunkMap *HunkMap
	tracks  []Track
	logger  *logging.Logger
}

// Open opens a CHD file and parses its header, hunk map and metadata.
func Open(path string, logger *logging.Logger) (*CHD, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CHD file: %w", err)
	}
	c, err := New(file, logger)
	if err != nil {
		file.Close()
		return nil, err
	}
	c.closer = file
	return c, nil
}

// New parses a CHD image from source.
func New(source io.ReaderAt, logger *logging.Logger) (*CHD, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	header, err := parseHeader(source)
	if err != nil {
		return nil, err
	}
	hunkMap, err := NewHunkMap(source, header)
	if err != nil {
		return nil, err
	}

	c := &CHD{source: source, header: header, hunkMap: hunkMap, logger: logger}
	if header.MetaOffset > 0 {
		entries, err := parseMetadata(source, header.MetaOffset)
		if err != nil {
			// Track metadata is optional; identification can proceed
			// from the hunk data alone.
			logger.Debug("failed to parse CHD metadata", "error", err)
		} else {
			c.tracks = parseTracks(entries)
		}
	}

	logger.Debug("opened CHD image",
		"hunkBytes", header.HunkBytes,
		"logicalBytes", header.LogicalBytes,
		"tracks", len(c.tracks))
	return c, nil
}

// Close closes the underlying file when the CHD was opened from a path.
func (c *CHD) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Header returns the parsed CHD header.
func (c *CHD) Header() *Header {
	return c.header
}

// Tracks returns the CD tracks parsed from CHT2 metadata, in track order.
func (c *CHD) Tracks() []Track {
	return c.tracks
}

// AudioOnly reports whether the image has audio tracks and no data tracks.
func (c *CHD) AudioOnly() bool {
	hasAudio := false
	for _, track := range c.tracks {
		if track.IsData() {
			return false
		}
		if track.IsAudio() {
			hasAudio = true
		}
	}
	return hasAudio
}

// TotalFrames returns the summed length of all tracks in frames.
func (c *CHD) TotalFrames() uint32 {
	total := uint32(0)
	for _, track := range c.tracks {
		total += track.Frames
	}
	return total
}

// FirstDataTrack returns the first data track, or false when the image has
// no data tracks.
func (c *CHD) FirstDataTrack() (Track, bool) {
	for _, track := range c.tracks {
		if track.IsData() {
			return track, true
		}
	}
	return Track{}, false
}

// HunkReader exposes the user data of one data track as logical 2048-byte
// sectors, decompressing hunks on demand. A single-slot cache holds the
// most recently used hunk, which suits the sequential and clustered reads
// of filesystem traversal.
type HunkReader struct {
	chd        *CHD
	trackBase  uint64
	frame      uint64
	dataOffset uint32

	cachedIndex uint32
	cachedData  []byte
}

// DataTrackReader returns a HunkReader over the image's first data track.
// Images without track metadata fall back to legacy geometry probing.
func (c *CHD) DataTrackReader() (*HunkReader, error) {
	track, ok := c.FirstDataTrack()
	if !ok {
		if len(c.tracks) > 0 {
			return nil, fmt.Errorf("image has no data tracks")
		}
		return c.legacyDataReader(), nil
	}
	return c.TrackReader(track), nil
}

// legacyDataReader handles images without CD track metadata: cooked
// 2048-byte sectors first, then raw 2352-byte frames with the MODE1
// header skip. Neither geometry showing a volume descriptor falls back
// to cooked, and the caller's filesystem probe fails from there.
func (c *CHD) legacyDataReader() *HunkReader {
	cooked := &HunkReader{chd: c, frame: consts.ISO9660_SECTOR_SIZE}
	if c.hasVolumeDescriptor(cooked) {
		return cooked
	}
	raw := &HunkReader{
		chd:        c,
		frame:      consts.CD_SECTOR_SIZE_RAW,
		dataOffset: consts.CD_MODE1_DATA_OFFSET,
	}
	if c.hasVolumeDescriptor(raw) {
		c.logger.Debug("no track metadata, using raw 2352-byte frames")
		return raw
	}
	return cooked
}

func (c *CHD) hasVolumeDescriptor(r *HunkReader) bool {
	sector, err := r.ReadSector(consts.ISO9660_SYSTEM_AREA_SECTORS)
	if err != nil {
		return false
	}
	return sector[0] == consts.ISO9660_PVD_TYPE &&
		string(sector[1:6]) == consts.ISO9660_STD_IDENTIFIER
}

// TrackReader returns a HunkReader over the given track.
func (c *CHD) TrackReader(track Track) *HunkReader {
	frame := uint64(c.header.UnitBytes)
	if frame == 0 {
		frame = consts.CD_FRAME_SIZE
	}
	return &HunkReader{
		chd:        c,
		trackBase:  uint64(track.FrameOffset) * consts.CD_FRAME_SIZE,
		frame:      frame,
		dataOffset: track.DataOffset(),
	}
}

func (r *HunkReader) SectorSize() uint32 {
	return consts.ISO9660_SECTOR_SIZE
}

func (r *HunkReader) ReadSector(index uint32) ([]byte, error) {
	physical := r.trackBase + uint64(index)*r.frame + uint64(r.dataOffset)
	return r.readPhysical(physical, consts.ISO9660_SECTOR_SIZE)
}

func (r *HunkReader) ReadSectors(index uint32, count uint32) ([]byte, error) {
	buf := make([]byte, 0, uint64(count)*consts.ISO9660_SECTOR_SIZE)
	for i := uint32(0); i < count; i++ {
		sector, err := r.ReadSector(index + i)
		if err != nil {
			return nil, err
		}
		buf = append(buf, sector...)
	}
	return buf, nil
}

func (r *HunkReader) ReadBytes(offset uint64, length uint64) ([]byte, error) {
	return reader.ReadBytesViaSectors(r, offset, length)
}

// readPhysical reads decompressed bytes at a physical offset within the
// hunk data, stitching across hunk boundaries.
func (r *HunkReader) readPhysical(offset uint64, length uint64) ([]byte, error) {
	hunkBytes := uint64(r.chd.header.HunkBytes)
	out := make([]byte, 0, length)

	for length > 0 {
		index := uint32(offset / hunkBytes)
		within := offset % hunkBytes
		if index >= r.chd.hunkMap.NumHunks() {
			return nil, fmt.Errorf("read past end of hunk data at offset %d", offset)
		}

		hunk, err := r.hunk(index)
		if err != nil {
			return nil, err
		}
		if within >= uint64(len(hunk)) {
			return nil, fmt.Errorf("read past end of hunk %d", index)
		}

		take := uint64(len(hunk)) - within
		if take > length {
			take = length
		}
		out = append(out, hunk[within:within+take]...)
		offset += take
		length -= take
	}
	return out, nil
}

func (r *HunkReader) hunk(index uint32) ([]byte, error) {
	if r.cachedData != nil && r.cachedIndex == index {
		return r.cachedData, nil
	}
	data, err := r.chd.hunkMap.ReadHunk(index)
	if err != nil {
		return nil, err
	}
	r.cachedIndex = index
	r.cachedData = data
	return data, nil
}

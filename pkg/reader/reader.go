// Package reader provides sector-addressed access to disc images. All
// filesystem parsers consume the SectorReader interface so the same code
// works over cooked images, raw CD tracks and compressed hunk archives.
package reader

import (
	"fmt"
	"io"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

// SectorReader exposes a disc image as a sequence of logical data sectors.
// Reads that cannot be satisfied in full fail; partial sectors are never
// returned.
type SectorReader interface {
	// ReadSector returns the logical data of a single sector.
	ReadSector(index uint32) ([]byte, error)
	// ReadSectors returns the logical data of count consecutive sectors
	// starting at index.
	ReadSectors(index uint32, count uint32) ([]byte, error)
	// ReadBytes returns length bytes of logical data starting at the
	// given byte offset, crossing sector boundaries as needed.
	ReadBytes(offset uint64, length uint64) ([]byte, error)
	// SectorSize returns the logical sector size in bytes.
	SectorSize() uint32
}

// ImageReader reads cooked images where the file is a bare run of logical
// sectors with no framing, such as .iso and .toast files.
type ImageReader struct {
	source     io.ReaderAt
	sectorSize uint32
}

// NewImageReader returns an ImageReader over source using the standard
// 2048-byte sector size.
func NewImageReader(source io.ReaderAt) *ImageReader {
	return &ImageReader{
		source:     source,
		sectorSize: consts.ISO9660_SECTOR_SIZE,
	}
}

func (r *ImageReader) SectorSize() uint32 {
	return r.sectorSize
}

func (r *ImageReader) ReadSector(index uint32) ([]byte, error) {
	return r.ReadSectors(index, 1)
}

func (r *ImageReader) ReadSectors(index uint32, count uint32) ([]byte, error) {
	buf := make([]byte, uint64(count)*uint64(r.sectorSize))
	offset := int64(index) * int64(r.sectorSize)
	n, err := r.source.ReadAt(buf, offset)
	if n < len(buf) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read sectors %d..%d: %w", index, index+count, err)
	}
	return buf, nil
}

func (r *ImageReader) ReadBytes(offset uint64, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := r.source.ReadAt(buf, int64(offset))
	if n < len(buf) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read %d bytes at offset %d: %w", length, offset, err)
	}
	return buf, nil
}

// TrackInfo describes the geometry of one track within a raw image.
type TrackInfo struct {
	// Number is the 1-based track number.
	Number int
	// Mode is the track mode string from the cue sheet, for example
	// "MODE1/2352" or "AUDIO".
	Mode string
	// FileOffset is the byte offset of the track's first frame within the
	// backing file.
	FileOffset uint64
	// Frames is the track length in frames. Zero means the track extends
	// to the end of the file.
	Frames uint32
	// RawSectorSize is the on-disc frame size: 2352 for raw CD sectors,
	// 2048 for cooked tracks.
	RawSectorSize uint32
	// DataOffset is the byte offset of the 2048 bytes of user data within
	// each raw frame: 16 for MODE1/2352, 24 for raw MODE2 forms, 0 for
	// cooked frames.
	DataOffset uint32
	// Audio marks audio tracks, which carry no filesystem data.
	Audio bool
}

// IsData reports whether the track can hold a filesystem.
func (t TrackInfo) IsData() bool {
	return !t.Audio
}

// TrackReader exposes the user data of a single raw track as logical
// 2048-byte sectors, stripping the sync, header and error correction
// framing from each frame.
type TrackReader struct {
	source io.ReaderAt
	track  TrackInfo
}

// NewTrackReader returns a TrackReader over the given track of source.
func NewTrackReader(source io.ReaderAt, track TrackInfo) *TrackReader {
	return &TrackReader{source: source, track: track}
}

func (r *TrackReader) SectorSize() uint32 {
	return consts.ISO9660_SECTOR_SIZE
}

func (r *TrackReader) ReadSector(index uint32) ([]byte, error) {
	frameOffset := r.track.FileOffset +
		uint64(index)*uint64(r.track.RawSectorSize) +
		uint64(r.track.DataOffset)
	buf := make([]byte, consts.ISO9660_SECTOR_SIZE)
	n, err := r.source.ReadAt(buf, int64(frameOffset))
	if n < len(buf) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read sector %d of track %d: %w", index, r.track.Number, err)
	}
	return buf, nil
}

func (r *TrackReader) ReadSectors(index uint32, count uint32) ([]byte, error) {
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

func (r *TrackReader) ReadBytes(offset uint64, length uint64) ([]byte, error) {
	return ReadBytesViaSectors(r, offset, length)
}

// ReadBytesViaSectors implements byte-addressed reads on top of sector
// reads, for readers whose backing store has per-sector framing.
func ReadBytesViaSectors(r SectorReader, offset uint64, length uint64) ([]byte, error) {
	sectorSize := uint64(r.SectorSize())
	first := uint32(offset / sectorSize)
	skip := offset % sectorSize
	count := uint32((skip + length + sectorSize - 1) / sectorSize)
	buf, err := r.ReadSectors(first, count)
	if err != nil {
		return nil, err
	}
	buf = buf[skip:]
	if uint64(len(buf)) > length {
		buf = buf[:length]
	}
	return buf, nil
}

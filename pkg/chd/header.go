package chd

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	headerMagic = "MComprHD"
	headerV5Len = 124
)

// Codec tags from the CHD container format.
const (
	CodecZlib   = 0x7A6C6962 // "zlib"
	CodecLZMA   = 0x6C7A6D61 // "lzma"
	CodecHuff   = 0x68756666 // "huff"
	CodecFLAC   = 0x666C6163 // "flac"
	CodecCDZlib = 0x63647A6C // "cdzl"
	CodecCDLZMA = 0x63646C7A // "cdlz"
	CodecCDFLAC = 0x6364666C // "cdfl"
)

// Header holds the fields of a version 5 CHD header.
type Header struct {
	// Version is the container version. Only version 5 is supported.
	Version uint32
	// Compressors holds up to four codec tags. All zero means the file
	// is uncompressed.
	Compressors [4]uint32
	// LogicalBytes is the uncompressed data size.
	LogicalBytes uint64
	// MapOffset is the file offset of the hunk map.
	MapOffset uint64
	// MetaOffset is the file offset of the first metadata entry, or zero.
	MetaOffset uint64
	// HunkBytes is the uncompressed size of one hunk.
	HunkBytes uint32
	// UnitBytes is the size of one addressing unit. CD images use
	// 2448-byte frames.
	UnitBytes uint32
}

// HunkCount returns the number of hunks in the file.
func (h Header) HunkCount() uint32 {
	if h.HunkBytes == 0 {
		return 0
	}
	return uint32((h.LogicalBytes + uint64(h.HunkBytes) - 1) / uint64(h.HunkBytes))
}

// Compressed reports whether the hunks are codec-compressed.
func (h Header) Compressed() bool {
	return h.Compressors[0] != 0
}

func codecName(tag uint32) string {
	return string([]byte{byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)})
}

// parseHeader reads and validates the CHD header.
func parseHeader(source io.ReaderAt) (*Header, error) {
	buf := make([]byte, headerV5Len)
	if _, err := source.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if string(buf[0:8]) != headerMagic {
		return nil, fmt.Errorf("not a CHD file: bad magic")
	}

	length := binary.BigEndian.Uint32(buf[8:12])
	version := binary.BigEndian.Uint32(buf[12:16])
	if version != 5 {
		return nil, &UnsupportedError{Reason: fmt.Sprintf("CHD version %d", version)}
	}
	if length < headerV5Len {
		return nil, fmt.Errorf("header too short: %d bytes", length)
	}

	header := &Header{Version: version}
	for i := range header.Compressors {
		header.Compressors[i] = binary.BigEndian.Uint32(buf[16+i*4 : 20+i*4])
	}
	header.LogicalBytes = binary.BigEndian.Uint64(buf[32:40])
	header.MapOffset = binary.BigEndian.Uint64(buf[40:48])
	header.MetaOffset = binary.BigEndian.Uint64(buf[48:56])
	header.HunkBytes = binary.BigEndian.Uint32(buf[56:60])
	header.UnitBytes = binary.BigEndian.Uint32(buf[60:64])

	if header.HunkBytes == 0 {
		return nil, fmt.Errorf("header declares zero hunk size")
	}
	return header, nil
}

// UnsupportedError marks CHD features this reader does not handle, such as
// FLAC-compressed hunks or pre-v5 containers.
type UnsupportedError struct {
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported CHD feature: %s", e.Reason)
}

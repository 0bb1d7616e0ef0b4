package chd

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

// decompressHunk expands one codec-compressed hunk. The zlib and lzma
// codecs apply to the whole hunk; the cdzl and cdlz codecs split each
// 2448-byte frame into separately compressed sector and subcode streams.
func decompressHunk(tag uint32, compressed []byte, hunkBytes uint32) ([]byte, error) {
	switch tag {
	case CodecZlib:
		return inflate(compressed, hunkBytes)
	case CodecLZMA:
		return lzmaDecompress(compressed, hunkBytes)
	case CodecCDZlib:
		return cdDecompress(compressed, hunkBytes, inflate)
	case CodecCDLZMA:
		return cdDecompress(compressed, hunkBytes, lzmaDecompress)
	case CodecFLAC, CodecCDFLAC:
		return nil, &UnsupportedError{Reason: fmt.Sprintf("%s codec", codecName(tag))}
	default:
		return nil, &UnsupportedError{Reason: fmt.Sprintf("%s codec", codecName(tag))}
	}
}

// inflate expands a raw DEFLATE stream. The CHD zlib codec stores bare
// DEFLATE data without the zlib wrapper.
func inflate(compressed []byte, expectedLen uint32) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	out := make([]byte, expectedLen)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("deflate stream: %w", err)
	}
	return out[:n], nil
}

// lzmaDecompress expands a headerless LZMA stream with the encoder
// defaults the CHD format uses (lc=3, lp=0, pb=2). A classic LZMA header
// is synthesized so the stream can be handed to the lzma reader.
func lzmaDecompress(compressed []byte, expectedLen uint32) ([]byte, error) {
	header := make([]byte, 13)
	header[0] = 0x5D // (pb*5+lp)*9+lc for the default 3/0/2
	binary.LittleEndian.PutUint32(header[1:5], dictionarySize(expectedLen))
	binary.LittleEndian.PutUint64(header[5:13], uint64(expectedLen))

	r, err := lzma.NewReader(io.MultiReader(bytes.NewReader(header), bytes.NewReader(compressed)))
	if err != nil {
		return nil, fmt.Errorf("lzma stream: %w", err)
	}

	out := make([]byte, expectedLen)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("lzma stream: %w", err)
	}
	return out[:n], nil
}

// dictionarySize returns a dictionary size covering the whole hunk. The
// decoder only needs as much history as the stream actually references,
// which is bounded by the hunk size.
func dictionarySize(hunkBytes uint32) uint32 {
	size := uint32(1 << 12)
	for size < hunkBytes {
		size <<= 1
	}
	return size
}

// cdDecompress expands a CD-codec hunk. The payload starts with a per-frame
// ECC bitmap and a 2- or 3-byte compressed length of the sector stream,
// followed by the sector stream (cd codec's base compressor) and the
// subcode stream (always DEFLATE). Frames are reassembled as 2352 sector
// bytes plus 96 subcode bytes. Sync and ECC bytes stripped by the
// compressor are not reconstituted; the user data regions are unaffected.
func cdDecompress(compressed []byte, hunkBytes uint32, base func([]byte, uint32) ([]byte, error)) ([]byte, error) {
	frames := hunkBytes / consts.CD_FRAME_SIZE
	if frames == 0 {
		return nil, fmt.Errorf("cd codec on non-frame hunk of %d bytes", hunkBytes)
	}

	eccBytes := (frames + 7) / 8
	complenBytes := uint32(2)
	if hunkBytes >= 65536 {
		complenBytes = 3
	}
	headerBytes := eccBytes + complenBytes
	if uint32(len(compressed)) < headerBytes {
		return nil, fmt.Errorf("cd codec payload truncated")
	}

	baseLen := uint32(compressed[eccBytes])<<8 | uint32(compressed[eccBytes+1])
	if complenBytes > 2 {
		baseLen = baseLen<<8 | uint32(compressed[eccBytes+2])
	}
	if headerBytes+baseLen > uint32(len(compressed)) {
		return nil, fmt.Errorf("cd codec sector stream truncated")
	}

	sectorData, err := base(compressed[headerBytes:headerBytes+baseLen], frames*consts.CD_SECTOR_SIZE_RAW)
	if err != nil {
		return nil, err
	}
	subcodeData, err := inflate(compressed[headerBytes+baseLen:], frames*subcodeBytes)
	if err != nil {
		return nil, err
	}

	out := make([]byte, hunkBytes)
	for frame := uint32(0); frame < frames; frame++ {
		dst := out[frame*consts.CD_FRAME_SIZE:]
		if int(frame+1)*consts.CD_SECTOR_SIZE_RAW <= len(sectorData) {
			copy(dst, sectorData[frame*consts.CD_SECTOR_SIZE_RAW:(frame+1)*consts.CD_SECTOR_SIZE_RAW])
		}
		if int(frame+1)*subcodeBytes <= len(subcodeData) {
			copy(dst[consts.CD_SECTOR_SIZE_RAW:], subcodeData[frame*subcodeBytes:(frame+1)*subcodeBytes])
		}
	}
	return out, nil
}

const subcodeBytes = consts.CD_FRAME_SIZE - consts.CD_SECTOR_SIZE_RAW

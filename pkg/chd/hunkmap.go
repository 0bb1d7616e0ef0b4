package chd

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Hunk map compression codes. Values 0-3 select one of the header's
// codecs; the remaining values are storage or map-encoding directives.
const (
	compCodec0 = 0
	compCodec3 = 3
	compNone   = 4
	compSelf   = 5
	compParent = 6

	compRLESmall   = 7
	compRLELarge   = 8
	compSelf0      = 9
	compSelf1      = 10
	compParentSelf = 11
	compParent0    = 12
	compParent1    = 13

	// compUncompressed marks entries of a raw (codec-less) CHD.
	compUncompressed = 0xFF
	// compEmpty marks an unallocated hunk of a raw CHD, read as zeros.
	compEmpty = 0xFE
)

// mapEntry locates one hunk within the file.
type mapEntry struct {
	compression uint8
	length      uint32
	offset      uint64
}

// HunkMap resolves hunk indexes to file locations.
type HunkMap struct {
	source  io.ReaderAt
	header  *Header
	entries []mapEntry
}

// NewHunkMap parses the hunk map. Uncompressed files store one 4-byte
// offset per hunk; compressed files store a Huffman-coded map.
func NewHunkMap(source io.ReaderAt, header *Header) (*HunkMap, error) {
	m := &HunkMap{source: source, header: header}
	var err error
	if header.Compressed() {
		m.entries, err = parseCompressedMap(source, header)
	} else {
		m.entries, err = parseUncompressedMap(source, header)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NumHunks returns the number of mapped hunks.
func (m *HunkMap) NumHunks() uint32 {
	return uint32(len(m.entries))
}

func parseUncompressedMap(source io.ReaderAt, header *Header) ([]mapEntry, error) {
	count := header.HunkCount()
	raw := make([]byte, 4*count)
	if _, err := source.ReadAt(raw, int64(header.MapOffset)); err != nil {
		return nil, fmt.Errorf("failed to read hunk map: %w", err)
	}

	entries := make([]mapEntry, count)
	for i := uint32(0); i < count; i++ {
		// Each entry is the hunk's file offset in hunk-sized units. Zero
		// marks an unallocated hunk.
		unit := binary.BigEndian.Uint32(raw[i*4 : i*4+4])
		if unit == 0 {
			entries[i] = mapEntry{compression: compEmpty}
			continue
		}
		entries[i] = mapEntry{
			compression: compUncompressed,
			length:      header.HunkBytes,
			offset:      uint64(unit) * uint64(header.HunkBytes),
		}
	}
	return entries, nil
}

func parseCompressedMap(source io.ReaderAt, header *Header) ([]mapEntry, error) {
	mapHeader := make([]byte, 16)
	if _, err := source.ReadAt(mapHeader, int64(header.MapOffset)); err != nil {
		return nil, fmt.Errorf("failed to read map header: %w", err)
	}
	mapBytes := binary.BigEndian.Uint32(mapHeader[0:4])
	firstOffset := uint48(mapHeader[4:10])
	lengthBits := mapHeader[12]
	selfBits := mapHeader[13]

	raw := make([]byte, mapBytes)
	if _, err := source.ReadAt(raw, int64(header.MapOffset)+16); err != nil {
		return nil, fmt.Errorf("failed to read compressed map: %w", err)
	}
	bits := newBitReader(raw)

	decoder, err := newHuffmanDecoder(bits, 16, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to read map code tree: %w", err)
	}

	// First pass decodes the per-hunk compression codes with run-length
	// repeats.
	count := header.HunkCount()
	codes := make([]uint8, count)
	lastCode := uint8(0)
	repeat := 0
	for i := uint32(0); i < count; i++ {
		if repeat > 0 {
			codes[i] = lastCode
			repeat--
			continue
		}
		val, err := decoder.decodeOne(bits)
		if err != nil {
			return nil, fmt.Errorf("failed to decode map entry %d: %w", i, err)
		}
		switch val {
		case compRLESmall:
			codes[i] = lastCode
			rep, err := decoder.decodeOne(bits)
			if err != nil {
				return nil, err
			}
			repeat = 2 + int(rep)
		case compRLELarge:
			codes[i] = lastCode
			high, err := decoder.decodeOne(bits)
			if err != nil {
				return nil, err
			}
			low, err := decoder.decodeOne(bits)
			if err != nil {
				return nil, err
			}
			repeat = 2 + 16 + int(high)<<4 + int(low)
		default:
			lastCode = val
			codes[i] = val
		}
	}

	// Second pass reads each entry's length and offset fields.
	entries := make([]mapEntry, count)
	curOffset := firstOffset
	lastSelf := uint64(0)
	for i := uint32(0); i < count; i++ {
		entry := mapEntry{compression: codes[i]}
		switch codes[i] {
		case compCodec0, compCodec0 + 1, compCodec0 + 2, compCodec3:
			length, err := bits.read(uint(lengthBits))
			if err != nil {
				return nil, err
			}
			entry.length = uint32(length)
			entry.offset = curOffset
			curOffset += length
			if _, err := bits.read(16); err != nil { // CRC, unchecked
				return nil, err
			}
		case compNone:
			entry.length = header.HunkBytes
			entry.offset = curOffset
			curOffset += uint64(header.HunkBytes)
			if _, err := bits.read(16); err != nil {
				return nil, err
			}
		case compSelf:
			offset, err := bits.read(uint(selfBits))
			if err != nil {
				return nil, err
			}
			entry.offset = offset
			lastSelf = offset
		case compSelf0, compSelf1:
			if codes[i] == compSelf1 {
				lastSelf++
			}
			entry.compression = compSelf
			entry.offset = lastSelf
		case compParent, compParentSelf, compParent0, compParent1:
			return nil, &UnsupportedError{Reason: "parent-referencing hunk map"}
		default:
			return nil, fmt.Errorf("unknown map compression code %d", codes[i])
		}
		entries[i] = entry
	}
	return entries, nil
}

func uint48(b []byte) uint64 {
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
}

// bitReader reads most-significant-bit-first values from a byte slice.
type bitReader struct {
	data []byte
	pos  uint // bit position
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) read(n uint) (uint64, error) {
	var out uint64
	for i := uint(0); i < n; i++ {
		byteIdx := r.pos >> 3
		if byteIdx >= uint(len(r.data)) {
			return 0, fmt.Errorf("bitstream exhausted")
		}
		bit := (r.data[byteIdx] >> (7 - r.pos&7)) & 1
		out = out<<1 | uint64(bit)
		r.pos++
	}
	return out, nil
}

// huffmanDecoder decodes the canonical Huffman codes used by the
// compressed hunk map.
type huffmanDecoder struct {
	maxBits uint
	// codes maps (bit length, code value) to a symbol.
	codes map[uint64]uint8
}

// newHuffmanDecoder imports a run-length-encoded code length table and
// assigns canonical codes.
func newHuffmanDecoder(bits *bitReader, numCodes int, maxBits uint) (*huffmanDecoder, error) {
	// Code lengths are stored in 4-bit fields (for 8-bit max codes) with
	// a run-length escape on the value 1.
	fieldBits := uint(3)
	if maxBits >= 16 {
		fieldBits = 5
	} else if maxBits >= 8 {
		fieldBits = 4
	}

	lengths := make([]uint8, numCodes)
	for cur := 0; cur < numCodes; {
		nodeBits, err := bits.read(fieldBits)
		if err != nil {
			return nil, err
		}
		if nodeBits != 1 {
			lengths[cur] = uint8(nodeBits)
			cur++
			continue
		}
		nodeBits, err = bits.read(fieldBits)
		if err != nil {
			return nil, err
		}
		if nodeBits == 1 {
			lengths[cur] = 1
			cur++
			continue
		}
		repCount, err := bits.read(fieldBits)
		if err != nil {
			return nil, err
		}
		for rep := uint64(0); rep <= repCount+2; rep++ {
			if cur >= numCodes {
				return nil, fmt.Errorf("code length run overflows table")
			}
			lengths[cur] = uint8(nodeBits)
			cur++
		}
	}

	// Canonical code assignment, longest codes first.
	var histo [33]uint32
	for _, l := range lengths {
		if l > 0 {
			histo[l]++
		}
	}
	curStart := uint32(0)
	for codeLen := 32; codeLen > 0; codeLen-- {
		nextStart := (curStart + histo[codeLen]) >> 1
		if codeLen != 1 && nextStart*2 != curStart+histo[codeLen] {
			return nil, fmt.Errorf("code lengths do not form a valid tree")
		}
		histo[codeLen] = curStart
		curStart = nextStart
	}

	d := &huffmanDecoder{maxBits: maxBits, codes: make(map[uint64]uint8)}
	for symbol, l := range lengths {
		if l == 0 {
			continue
		}
		code := histo[l]
		histo[l]++
		d.codes[uint64(l)<<32|uint64(code)] = uint8(symbol)
	}
	return d, nil
}

func (d *huffmanDecoder) decodeOne(bits *bitReader) (uint8, error) {
	value := uint64(0)
	for length := uint(1); length <= d.maxBits; length++ {
		bit, err := bits.read(1)
		if err != nil {
			return 0, err
		}
		value = value<<1 | bit
		if symbol, ok := d.codes[uint64(length)<<32|value]; ok {
			return symbol, nil
		}
	}
	return 0, fmt.Errorf("no matching code within %d bits", d.maxBits)
}

// ReadHunk returns the decompressed contents of one hunk.
func (m *HunkMap) ReadHunk(index uint32) ([]byte, error) {
	if index >= uint32(len(m.entries)) {
		return nil, fmt.Errorf("hunk %d out of range (%d hunks)", index, len(m.entries))
	}
	entry := m.entries[index]

	switch entry.compression {
	case compEmpty:
		return make([]byte, m.header.HunkBytes), nil
	case compUncompressed, compNone:
		buf := make([]byte, m.header.HunkBytes)
		if _, err := m.source.ReadAt(buf, int64(entry.offset)); err != nil {
			return nil, fmt.Errorf("failed to read hunk %d: %w", index, err)
		}
		return buf, nil
	case compSelf:
		if entry.offset >= uint64(index) {
			return nil, fmt.Errorf("hunk %d self-reference points forward", index)
		}
		return m.ReadHunk(uint32(entry.offset))
	default:
		if entry.compression > compCodec3 {
			return nil, fmt.Errorf("hunk %d has unexpected compression %d", index, entry.compression)
		}
		compressed := make([]byte, entry.length)
		if _, err := m.source.ReadAt(compressed, int64(entry.offset)); err != nil {
			return nil, fmt.Errorf("failed to read hunk %d: %w", index, err)
		}
		tag := m.header.Compressors[entry.compression]
		data, err := decompressHunk(tag, compressed, m.header.HunkBytes)
		if err != nil {
			return nil, fmt.Errorf("hunk %d: %w", index, err)
		}
		return data, nil
	}
}

// Package apm parses the Apple Partition Map found at the start of
// Macintosh disc images. Hybrid Mac/ISO discs use it to locate the HFS
// partition.
package apm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/helpers"
)

// PartitionEntry is one entry of the partition map.
type PartitionEntry struct {
	// Name is the partition name from the entry, trimmed.
	Name string
	// Type is the partition type string, for example "Apple_HFS".
	Type string
	// StartBlock is the partition's first 512-byte block.
	StartBlock uint32
	// BlockCount is the partition's length in 512-byte blocks.
	BlockCount uint32
}

// ByteOffset returns the partition's byte offset within the image.
func (e PartitionEntry) ByteOffset() uint64 {
	return uint64(e.StartBlock) * consts.APM_BLOCK_SIZE
}

// IsHFS reports whether the partition holds an HFS family filesystem.
// Apple_HFS covers both classic HFS and wrapped or plain HFS+ volumes;
// Apple_HFSX is case-sensitive HFS+.
func (e PartitionEntry) IsHFS() bool {
	return strings.HasPrefix(e.Type, "Apple_HFS") || e.Type == "Apple_HFSX"
}

// HasDriverDescriptor reports whether the first block of the image carries
// the 0x4552 ("ER") driver descriptor signature that marks an Apple
// partitioned disc.
func HasDriverDescriptor(block []byte) bool {
	if len(block) < 2 {
		return false
	}
	return binary.BigEndian.Uint16(block[0:2]) == consts.APM_DDM_SIGNATURE
}

// ParsePartitionMap parses the partition entries from an image prefix. The
// buffer must start at byte 0 of the image; entries begin at block 1 and
// the first entry declares how many follow.
func ParsePartitionMap(buf []byte) ([]PartitionEntry, error) {
	if !HasDriverDescriptor(buf) {
		return nil, fmt.Errorf("no apple driver descriptor signature")
	}

	first := buf[consts.APM_BLOCK_SIZE:]
	if len(first) < 16 {
		return nil, fmt.Errorf("image truncated before partition map")
	}
	if binary.BigEndian.Uint16(first[0:2]) != consts.APM_ENTRY_SIGNATURE {
		return nil, fmt.Errorf("no partition map entry signature at block 1")
	}
	entryCount := binary.BigEndian.Uint32(first[4:8])

	var entries []PartitionEntry
	for i := uint32(0); i < entryCount; i++ {
		offset := uint64(1+i) * consts.APM_BLOCK_SIZE
		if offset+80 > uint64(len(buf)) {
			break
		}
		entry := buf[offset:]
		if binary.BigEndian.Uint16(entry[0:2]) != consts.APM_ENTRY_SIGNATURE {
			break
		}
		entries = append(entries, PartitionEntry{
			StartBlock: binary.BigEndian.Uint32(entry[8:12]),
			BlockCount: binary.BigEndian.Uint32(entry[12:16]),
			Name:       helpers.TrimPaddedString(entry[16:48]),
			Type:       helpers.TrimPaddedString(entry[48:80]),
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("partition map contains no parseable entries")
	}
	return entries, nil
}

// FindHFSPartition returns the byte offset of the first HFS family
// partition of the map.
func FindHFSPartition(entries []PartitionEntry) (uint64, error) {
	for _, entry := range entries {
		if entry.IsHFS() {
			return entry.ByteOffset(), nil
		}
	}
	return 0, fmt.Errorf("partition map has no HFS partition")
}

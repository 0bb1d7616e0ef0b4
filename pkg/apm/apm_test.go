package apm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildMap assembles an image prefix with a driver descriptor block and the
// given partition entries.
func buildMap(entries []PartitionEntry) []byte {
	buf := make([]byte, 512*(1+len(entries)))
	binary.BigEndian.PutUint16(buf[0:2], 0x4552)
	for i, e := range entries {
		block := buf[512*(1+i):]
		binary.BigEndian.PutUint16(block[0:2], 0x504D)
		binary.BigEndian.PutUint32(block[4:8], uint32(len(entries)))
		binary.BigEndian.PutUint32(block[8:12], e.StartBlock)
		binary.BigEndian.PutUint32(block[12:16], e.BlockCount)
		copy(block[16:48], e.Name)
		copy(block[48:80], e.Type)
	}
	return buf
}

func TestParsePartitionMap(t *testing.T) {
	buf := buildMap([]PartitionEntry{
		{Name: "Apple", Type: "Apple_partition_map", StartBlock: 1, BlockCount: 2},
		{Name: "MacOS", Type: "Apple_HFS", StartBlock: 64, BlockCount: 4096},
	})

	entries, err := ParsePartitionMap(buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "Apple_partition_map", entries[0].Type)
	require.Equal(t, "MacOS", entries[1].Name)
	require.Equal(t, uint32(64), entries[1].StartBlock)
}

func TestFindHFSPartitionOffset(t *testing.T) {
	buf := buildMap([]PartitionEntry{
		{Name: "Apple", Type: "Apple_partition_map", StartBlock: 1, BlockCount: 2},
		{Name: "MacOS", Type: "Apple_HFS", StartBlock: 100, BlockCount: 4096},
	})

	entries, err := ParsePartitionMap(buf)
	require.NoError(t, err)
	offset, err := FindHFSPartition(entries)
	require.NoError(t, err)
	// Offsets are in 512-byte blocks regardless of partition content.
	require.Equal(t, uint64(100*512), offset)
}

func TestFindHFSPartitionHFSX(t *testing.T) {
	buf := buildMap([]PartitionEntry{
		{Name: "MacOSX", Type: "Apple_HFSX", StartBlock: 8, BlockCount: 16},
	})
	entries, err := ParsePartitionMap(buf)
	require.NoError(t, err)
	offset, err := FindHFSPartition(entries)
	require.NoError(t, err)
	require.Equal(t, uint64(8*512), offset)
}

func TestNoHFSPartition(t *testing.T) {
	buf := buildMap([]PartitionEntry{
		{Name: "Apple", Type: "Apple_partition_map", StartBlock: 1, BlockCount: 2},
		{Name: "Driver", Type: "Apple_Driver43", StartBlock: 32, BlockCount: 16},
	})
	entries, err := ParsePartitionMap(buf)
	require.NoError(t, err)
	_, err = FindHFSPartition(entries)
	require.Error(t, err)
}

func TestNoDriverDescriptor(t *testing.T) {
	_, err := ParsePartitionMap(make([]byte, 1024))
	require.Error(t, err)
}

package hfsplus

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrewell/disc-kit/pkg/filesystem"
	"github.com/bgrewell/disc-kit/pkg/reader"
)

const (
	testBlockSize   = 512
	testNodeSize    = 512
	testCatalogBase = 2048 // catalog start block 4 at 512-byte blocks
)

func encodeUTF16BE(s string) []byte {
	var out []byte
	for _, r := range s {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}

type catalogRecord struct {
	parentID uint32
	name     string // empty marks a thread record
	kind     int16
	cnid     uint32
	size     uint64
	extent   Extent
	// threadName is the payload name of a thread record.
	threadName string
}

func buildLeafNode(fLink uint32, records []catalogRecord) []byte {
	node := make([]byte, testNodeSize)
	binary.BigEndian.PutUint32(node[0:4], fLink)
	node[8] = 0xFF // leaf node
	binary.BigEndian.PutUint16(node[10:12], uint16(len(records)))

	pos := 14
	for i, rec := range records {
		recordOffset := pos
		name := encodeUTF16BE(rec.name)
		keyLen := 6 + len(name)
		binary.BigEndian.PutUint16(node[pos:pos+2], uint16(keyLen))
		binary.BigEndian.PutUint32(node[pos+2:pos+6], rec.parentID)
		binary.BigEndian.PutUint16(node[pos+6:pos+8], uint16(len(rec.name)))
		copy(node[pos+8:], name)

		dataOffset := recordOffset + 2 + keyLen
		binary.BigEndian.PutUint16(node[dataOffset:dataOffset+2], uint16(rec.kind))
		switch rec.kind {
		case folderRecord:
			binary.BigEndian.PutUint32(node[dataOffset+8:dataOffset+12], rec.cnid)
			pos = dataOffset + 100
		case fileRecord:
			binary.BigEndian.PutUint32(node[dataOffset+8:dataOffset+12], rec.cnid)
			binary.BigEndian.PutUint64(node[dataOffset+88:dataOffset+96], rec.size)
			binary.BigEndian.PutUint32(node[dataOffset+104:dataOffset+108], rec.extent.StartBlock)
			binary.BigEndian.PutUint32(node[dataOffset+108:dataOffset+112], rec.extent.BlockCount)
			pos = dataOffset + 120
		case folderThreadRecord:
			threadName := encodeUTF16BE(rec.threadName)
			binary.BigEndian.PutUint32(node[dataOffset+4:dataOffset+8], rec.cnid)
			binary.BigEndian.PutUint16(node[dataOffset+8:dataOffset+10], uint16(len(rec.threadName)))
			copy(node[dataOffset+10:], threadName)
			pos = dataOffset + 10 + len(threadName) + 2
		}

		offsetPos := testNodeSize - 2 - i*2
		binary.BigEndian.PutUint16(node[offsetPos:offsetPos+2], uint16(recordOffset))
	}
	return node
}

func buildVolume(signature uint16, leaves ...[]byte) []byte {
	image := make([]byte, 16*testBlockSize)

	header := image[1024:]
	binary.BigEndian.PutUint16(header[0:2], signature)
	binary.BigEndian.PutUint16(header[2:4], 4)
	binary.BigEndian.PutUint32(header[32:36], 3)   // file count
	binary.BigEndian.PutUint32(header[36:40], 2)   // folder count
	binary.BigEndian.PutUint32(header[40:44], testBlockSize)
	binary.BigEndian.PutUint32(header[44:48], 16)  // total blocks
	binary.BigEndian.PutUint32(header[48:52], 4)   // free blocks
	binary.BigEndian.PutUint32(header[128:132], 4) // catalog start block
	binary.BigEndian.PutUint32(header[132:136], 2) // catalog block count

	btHeader := image[testCatalogBase:]
	btHeader[8] = 1
	binary.BigEndian.PutUint32(btHeader[24:28], 1) // first leaf node
	binary.BigEndian.PutUint16(btHeader[32:34], testNodeSize)

	for i, leaf := range leaves {
		copy(image[testCatalogBase+testNodeSize*(1+i):], leaf)
	}
	return image
}

func standardLeaf() []byte {
	return buildLeafNode(0, []catalogRecord{
		{parentID: 2, kind: folderThreadRecord, cnid: 1, threadName: "Macintosh HD"},
		{parentID: 2, name: "Applications", kind: folderRecord, cnid: 19},
		{parentID: 2, name: "ReadMe.txt", kind: fileRecord, cnid: 20, size: 11,
			extent: Extent{StartBlock: 10, BlockCount: 1}},
	})
}

func TestHeaderFields(t *testing.T) {
	image := buildVolume(0x482B, standardLeaf())
	header, err := Probe(reader.NewImageReader(bytes.NewReader(image)), 0)
	require.NoError(t, err)
	require.Equal(t, uint16(4), header.Version)
	require.Equal(t, uint32(testBlockSize), header.BlockSize)
	require.Equal(t, uint32(16), header.TotalBlocks)
	require.Equal(t, uint32(4), header.FreeBlocks)
	require.Equal(t, uint32(3), header.FileCount)
	require.Equal(t, uint32(2), header.FolderCount)
	require.Equal(t, Extent{StartBlock: 4, BlockCount: 2}, header.CatalogExtent)
	require.False(t, header.IsHFSX())
}

func TestHFSXSignature(t *testing.T) {
	image := buildVolume(0x4858, standardLeaf())
	header, err := Probe(reader.NewImageReader(bytes.NewReader(image)), 0)
	require.NoError(t, err)
	require.True(t, header.IsHFSX())
}

func TestRejectsBadSignature(t *testing.T) {
	image := buildVolume(0x1234)
	_, err := Probe(reader.NewImageReader(bytes.NewReader(image)), 0)
	require.Error(t, err)
}

func TestVolumeNameFromThreadRecord(t *testing.T) {
	image := buildVolume(0x482B, standardLeaf())
	fs, err := Open(reader.NewImageReader(bytes.NewReader(image)), 0, nil)
	require.NoError(t, err)
	require.Equal(t, "Macintosh HD", fs.VolumeName())
}

func TestVolumeNameFallback(t *testing.T) {
	// Without a root thread record the default name is used.
	leaf := buildLeafNode(0, []catalogRecord{
		{parentID: 2, name: "Applications", kind: folderRecord, cnid: 19},
	})
	image := buildVolume(0x482B, leaf)
	fs, err := Open(reader.NewImageReader(bytes.NewReader(image)), 0, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultVolumeName, fs.VolumeName())
}

func TestListRootDirectory(t *testing.T) {
	image := buildVolume(0x482B, standardLeaf())
	fs, err := Open(reader.NewImageReader(bytes.NewReader(image)), 0, nil)
	require.NoError(t, err)

	entries, err := fs.ListDirectory(fs.Root())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "Applications", entries[0].Name)
	require.True(t, entries[0].IsDir())
	require.Equal(t, uint32(19), entries[0].ID)

	require.Equal(t, "ReadMe.txt", entries[1].Name)
	require.Equal(t, uint64(11), entries[1].Size)
	require.Equal(t, uint32(20), entries[1].ID)
}

func TestReadFileFirstExtent(t *testing.T) {
	image := buildVolume(0x482B, standardLeaf())
	copy(image[10*testBlockSize:], "hello world")

	fs, err := Open(reader.NewImageReader(bytes.NewReader(image)), 0, nil)
	require.NoError(t, err)

	entries, err := fs.ListDirectory(fs.Root())
	require.NoError(t, err)
	file := entries[1]

	data, err := fs.ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	data, err = fs.ReadFileRange(file, 6, 100)
	require.NoError(t, err)
	require.Equal(t, "world", string(data))

	data, err = fs.ReadFileRange(file, 100, 5)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestReadFileUnknownCNID(t *testing.T) {
	image := buildVolume(0x482B, standardLeaf())
	fs, err := Open(reader.NewImageReader(bytes.NewReader(image)), 0, nil)
	require.NoError(t, err)

	_, err = fs.ReadFile(filesystem.FileEntry{Name: "ghost", ID: 99, Size: 5})
	require.ErrorIs(t, err, filesystem.ErrNotFound)
}

func TestCorruptLeafChainTerminates(t *testing.T) {
	leaf := buildLeafNode(1, []catalogRecord{
		{parentID: 2, name: "Loop", kind: folderRecord, cnid: 19},
	})
	image := buildVolume(0x482B, leaf)
	fs, err := Open(reader.NewImageReader(bytes.NewReader(image)), 0, nil)
	require.NoError(t, err)

	entries, err := fs.ListDirectory(fs.Root())
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

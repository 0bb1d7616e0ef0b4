package hfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrewell/disc-kit/pkg/filesystem"
	"github.com/bgrewell/disc-kit/pkg/reader"
)

const (
	testNodeSize    = 512
	testCatalogBase = 3072
)

// catalogRecord is a leaf record under construction.
type catalogRecord struct {
	parentID uint32
	name     string
	isFolder bool
	id       uint32
	size     uint32
}

func buildLeafNode(fLink uint32, records []catalogRecord) []byte {
	node := make([]byte, testNodeSize)
	binary.BigEndian.PutUint32(node[0:4], fLink)
	node[8] = 0xFF // leaf node kind (-1)
	binary.BigEndian.PutUint16(node[10:12], uint16(len(records)))

	pos := 14
	for i, rec := range records {
		recordOffset := pos
		keyLen := 6 + len(rec.name)
		node[pos] = byte(keyLen)
		binary.BigEndian.PutUint32(node[pos+2:pos+6], rec.parentID)
		node[pos+6] = byte(len(rec.name))
		copy(node[pos+7:], rec.name)

		dataOffset := recordOffset + 1 + keyLen
		if dataOffset%2 != 0 {
			dataOffset++
		}
		if rec.isFolder {
			node[dataOffset] = 1
			binary.BigEndian.PutUint32(node[dataOffset+6:dataOffset+10], rec.id)
			pos = dataOffset + 70
		} else {
			node[dataOffset] = 2
			binary.BigEndian.PutUint32(node[dataOffset+20:dataOffset+24], rec.id)
			binary.BigEndian.PutUint32(node[dataOffset+62:dataOffset+66], rec.size)
			pos = dataOffset + 102
		}

		offsetPos := testNodeSize - 2 - i*2
		binary.BigEndian.PutUint16(node[offsetPos:offsetPos+2], uint16(recordOffset))
	}
	return node
}

// buildVolume assembles a minimal HFS volume image: MDB at 1024, catalog
// header at 3072, the given leaf nodes after it.
func buildVolume(volumeName string, leaves ...[]byte) []byte {
	image := make([]byte, testCatalogBase+testNodeSize*(1+len(leaves)))

	mdb := image[1024:]
	binary.BigEndian.PutUint16(mdb[0:2], 0x4244)
	binary.BigEndian.PutUint16(mdb[12:14], 1)
	binary.BigEndian.PutUint16(mdb[16:18], 1)
	binary.BigEndian.PutUint32(mdb[20:24], 512)  // allocation block size
	binary.BigEndian.PutUint16(mdb[28:30], 6)    // first allocation block
	mdb[36] = byte(len(volumeName))
	copy(mdb[37:], volumeName)
	binary.BigEndian.PutUint16(mdb[150:152], 0) // catalog first block
	binary.BigEndian.PutUint16(mdb[152:154], 2) // catalog extent length

	header := image[testCatalogBase:]
	header[8] = 1 // header node kind
	binary.BigEndian.PutUint32(header[24:28], 1) // first leaf node
	binary.BigEndian.PutUint16(header[32:34], testNodeSize)

	for i, leaf := range leaves {
		copy(image[testCatalogBase+testNodeSize*(1+i):], leaf)
	}
	return image
}

func TestMDBVolumeName(t *testing.T) {
	image := buildVolume("TestVol")
	mdb, err := Probe(reader.NewImageReader(bytes.NewReader(image)), 0)
	require.NoError(t, err)
	require.Equal(t, "TestVol", mdb.VolumeName)
	require.Equal(t, uint32(512), mdb.AllocBlockSize)
	require.Equal(t, uint16(6), mdb.AllocBlockStart)
	require.Equal(t, uint16(2), mdb.CatalogExtentLength)
}

func TestMDBRejectsBadSignature(t *testing.T) {
	image := buildVolume("TestVol")
	image[1024] = 0x00
	_, err := Probe(reader.NewImageReader(bytes.NewReader(image)), 0)
	require.Error(t, err)
}

func TestListRootDirectory(t *testing.T) {
	leaf := buildLeafNode(0, []catalogRecord{
		{parentID: 2, name: "Read Me", isFolder: false, id: 16, size: 1234},
		{parentID: 2, name: "System Folder", isFolder: true, id: 17},
		{parentID: 17, name: "Finder", isFolder: false, id: 18, size: 99},
	})
	image := buildVolume("TestVol", leaf)

	fs, err := Open(reader.NewImageReader(bytes.NewReader(image)), 0, nil)
	require.NoError(t, err)
	require.Equal(t, "TestVol", fs.VolumeName())

	entries, err := fs.ListDirectory(fs.Root())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Directories sort before files.
	require.Equal(t, "System Folder", entries[0].Name)
	require.True(t, entries[0].IsDir())
	require.Equal(t, uint32(17), entries[0].ID)

	require.Equal(t, "Read Me", entries[1].Name)
	require.Equal(t, uint64(1234), entries[1].Size)

	// Descending into the folder finds its child.
	children, err := fs.ListDirectory(entries[0])
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, "Finder", children[0].Name)
}

func TestLeafCycleTerminates(t *testing.T) {
	// A corrupted forward link pointing back at the same node must not
	// hang the scan.
	leaf := buildLeafNode(1, []catalogRecord{
		{parentID: 2, name: "Loop", isFolder: false, id: 16, size: 1},
	})
	image := buildVolume("TestVol", leaf)

	fs, err := Open(reader.NewImageReader(bytes.NewReader(image)), 0, nil)
	require.NoError(t, err)

	entries, err := fs.ListDirectory(fs.Root())
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestReadFileUnsupported(t *testing.T) {
	leaf := buildLeafNode(0, []catalogRecord{
		{parentID: 2, name: "Read Me", isFolder: false, id: 16, size: 1234},
	})
	image := buildVolume("TestVol", leaf)

	fs, err := Open(reader.NewImageReader(bytes.NewReader(image)), 0, nil)
	require.NoError(t, err)

	entries, err := fs.ListDirectory(fs.Root())
	require.NoError(t, err)

	_, err = fs.ReadFile(entries[0])
	require.ErrorIs(t, err, filesystem.ErrUnsupported)
	_, err = fs.ReadFileRange(entries[0], 0, 10)
	require.True(t, errors.Is(err, filesystem.ErrUnsupported))
}

func TestDecodeMacRoman(t *testing.T) {
	// 0x8E is e-acute in MacRoman.
	require.Equal(t, "Café", DecodeMacRoman([]byte{'C', 'a', 'f', 0x8E}))
}

// Package hfs parses classic HFS volumes: the Master Directory Block and
// the catalog B-tree. Directory listing works; file content reads are not
// implemented because they would require full extent overflow handling,
// and classic HFS discs are identified by their metadata alone.
package hfs

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/filesystem"
	"github.com/bgrewell/disc-kit/pkg/helpers"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/reader"
)

const (
	folderRecord = 1
	fileRecord   = 2

	mdbSize        = 162
	nodeDescriptor = 14
)

// MasterDirectoryBlock holds the fields of the HFS MDB at byte 1024 of the
// volume.
type MasterDirectoryBlock struct {
	// VolumeName is the volume's Pascal-string name decoded from
	// MacRoman.
	VolumeName string
	// AllocBlockSize is the allocation block size in bytes.
	AllocBlockSize uint32
	// AllocBlockStart is the first allocation block, in 512-byte blocks
	// from the start of the volume.
	AllocBlockStart uint16
	// CatalogFirstBlock is the first allocation block of the catalog
	// file's first extent.
	CatalogFirstBlock uint16
	// CatalogExtentLength is the catalog extent's length in allocation
	// blocks.
	CatalogExtentLength uint16
	// RootFileCount is the number of files in the root directory.
	RootFileCount uint16
	// RootDirCount is the number of directories in the root directory.
	RootDirCount uint16
}

// HasSignature reports whether buf starts with the HFS "BD" signature.
func HasSignature(buf []byte) bool {
	return len(buf) >= 2 && binary.BigEndian.Uint16(buf[0:2]) == consts.HFS_SIGNATURE
}

// Unmarshal parses the MDB from a buffer starting at byte 1024 of the
// volume.
func (mdb *MasterDirectoryBlock) Unmarshal(buf []byte) error {
	if len(buf) < mdbSize {
		return fmt.Errorf("master directory block truncated: %d bytes", len(buf))
	}
	if !HasSignature(buf) {
		return fmt.Errorf("invalid HFS signature: 0x%04X", binary.BigEndian.Uint16(buf[0:2]))
	}

	mdb.RootFileCount = binary.BigEndian.Uint16(buf[12:14])
	mdb.RootDirCount = binary.BigEndian.Uint16(buf[16:18])
	mdb.AllocBlockSize = binary.BigEndian.Uint32(buf[20:24])
	mdb.AllocBlockStart = binary.BigEndian.Uint16(buf[28:30])

	nameLen := int(buf[36])
	if nameLen > 27 {
		return fmt.Errorf("invalid volume name length: %d", nameLen)
	}
	mdb.VolumeName = strings.TrimSpace(DecodeMacRoman(buf[37 : 37+nameLen]))

	mdb.CatalogFirstBlock = binary.BigEndian.Uint16(buf[150:152])
	mdb.CatalogExtentLength = binary.BigEndian.Uint16(buf[152:154])
	return nil
}

// DecodeMacRoman converts MacRoman bytes to UTF-8. Undecodable input falls
// back to a byte-by-byte conversion.
func DecodeMacRoman(raw []byte) string {
	decoded, err := charmap.Macintosh.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// FileSystem is a read-only view over a classic HFS volume's catalog.
type FileSystem struct {
	reader          reader.SectorReader
	partitionOffset uint64
	mdb             MasterDirectoryBlock
	nodeSize        uint16
	firstLeafNode   uint32
	logger          *logging.Logger
}

// Open parses the MDB and catalog B-tree header of the HFS volume at
// partitionOffset within the image.
func Open(r reader.SectorReader, partitionOffset uint64, logger *logging.Logger) (*FileSystem, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	mdbData, err := r.ReadBytes(partitionOffset+consts.MAC_VOLUME_HEADER_OFFSET, mdbSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read master directory block: %w", err)
	}
	fs := &FileSystem{reader: r, partitionOffset: partitionOffset, logger: logger}
	if err := fs.mdb.Unmarshal(mdbData); err != nil {
		return nil, err
	}

	header, err := r.ReadBytes(fs.catalogOffset(), consts.APM_BLOCK_SIZE)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header node: %w", err)
	}
	if len(header) < 34 {
		return nil, fmt.Errorf("catalog header node truncated")
	}
	if int8(header[8]) != 1 {
		return nil, fmt.Errorf("expected catalog header node, got kind %d", int8(header[8]))
	}
	fs.firstLeafNode = binary.BigEndian.Uint32(header[24:28])
	fs.nodeSize = binary.BigEndian.Uint16(header[32:34])
	if fs.nodeSize == 0 {
		return nil, fmt.Errorf("catalog header declares zero node size")
	}

	logger.Debug("parsed HFS catalog header",
		"volume", fs.mdb.VolumeName,
		"nodeSize", fs.nodeSize,
		"firstLeafNode", fs.firstLeafNode)
	return fs, nil
}

// MDB returns the parsed master directory block.
func (fs *FileSystem) MDB() MasterDirectoryBlock {
	return fs.mdb
}

func (fs *FileSystem) VolumeName() string {
	return fs.mdb.VolumeName
}

func (fs *FileSystem) Root() filesystem.FileEntry {
	return filesystem.FileEntry{
		Name: "/",
		Path: "/",
		Type: filesystem.EntryTypeDirectory,
		ID:   consts.MAC_ROOT_FOLDER_ID,
	}
}

func (fs *FileSystem) ListDirectory(dir filesystem.FileEntry) ([]filesystem.FileEntry, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir.Name)
	}

	var entries []filesystem.FileEntry
	node := fs.firstLeafNode
	visited := uint32(0)
	for node != 0 && visited < consts.CATALOG_MAX_LEAF_NODES {
		visited++
		nodeData, err := fs.readNode(node)
		if err != nil {
			return nil, err
		}
		if len(nodeData) < nodeDescriptor {
			break
		}
		next := binary.BigEndian.Uint32(nodeData[0:4])
		if int8(nodeData[8]) == -1 {
			numRecords := binary.BigEndian.Uint16(nodeData[10:12])
			fs.collectLeafRecords(nodeData, numRecords, dir.ID, &entries)
		}
		node = next
	}

	for i := range entries {
		entries[i].Path = filesystem.ChildPath(dir, entries[i].Name)
	}
	sortEntries(entries)
	return entries, nil
}

// ReadFile is not implemented for classic HFS. Locating file contents
// requires extent overflow B-tree support, which this parser omits.
func (fs *FileSystem) ReadFile(file filesystem.FileEntry) ([]byte, error) {
	return nil, fmt.Errorf("HFS file reading: %w", filesystem.ErrUnsupported)
}

func (fs *FileSystem) ReadFileRange(file filesystem.FileEntry, offset uint64, length uint64) ([]byte, error) {
	return nil, fmt.Errorf("HFS file reading: %w", filesystem.ErrUnsupported)
}

func (fs *FileSystem) catalogOffset() uint64 {
	return fs.partitionOffset +
		uint64(fs.mdb.AllocBlockStart)*consts.APM_BLOCK_SIZE +
		uint64(fs.mdb.CatalogFirstBlock)*uint64(fs.mdb.AllocBlockSize)
}

func (fs *FileSystem) readNode(node uint32) ([]byte, error) {
	offset := fs.catalogOffset() + uint64(node)*uint64(fs.nodeSize)
	data, err := fs.reader.ReadBytes(offset, uint64(fs.nodeSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog node %d: %w", node, err)
	}
	return data, nil
}

// collectLeafRecords appends the file and folder records of a leaf node
// whose parent matches parentID. Thread records carry an empty name and
// are skipped.
func (fs *FileSystem) collectLeafRecords(nodeData []byte, numRecords uint16, parentID uint32, entries *[]filesystem.FileEntry) {
	offsetsStart := int(fs.nodeSize) - 2

	for i := 0; i < int(numRecords); i++ {
		offsetPos := offsetsStart - i*2
		if offsetPos < 0 || offsetPos+2 > len(nodeData) {
			continue
		}
		recordOffset := int(binary.BigEndian.Uint16(nodeData[offsetPos : offsetPos+2]))
		if recordOffset+8 > len(nodeData) {
			continue
		}

		keyLen := int(nodeData[recordOffset])
		if keyLen < 6 {
			continue
		}
		recordParent := binary.BigEndian.Uint32(nodeData[recordOffset+2 : recordOffset+6])
		if recordParent != parentID {
			continue
		}

		nameLen := int(nodeData[recordOffset+6])
		if nameLen == 0 || nameLen > 31 {
			continue
		}
		nameEnd := recordOffset + 7 + nameLen
		if nameEnd > len(nodeData) {
			continue
		}
		name := DecodeMacRoman(nodeData[recordOffset+7 : nameEnd])

		// Record data starts after the key, rounded up to an even
		// boundary.
		dataOffset := recordOffset + 1 + keyLen
		if dataOffset%2 != 0 {
			dataOffset++
		}
		if dataOffset+2 > len(nodeData) {
			continue
		}

		switch int8(nodeData[dataOffset]) {
		case folderRecord:
			if dataOffset+10 > len(nodeData) {
				continue
			}
			*entries = append(*entries, filesystem.FileEntry{
				Name: name,
				Type: filesystem.EntryTypeDirectory,
				ID:   binary.BigEndian.Uint32(nodeData[dataOffset+6 : dataOffset+10]),
			})
		case fileRecord:
			if dataOffset+66 > len(nodeData) {
				continue
			}
			*entries = append(*entries, filesystem.FileEntry{
				Name: name,
				Type: filesystem.EntryTypeFile,
				ID:   binary.BigEndian.Uint32(nodeData[dataOffset+20 : dataOffset+24]),
				Size: uint64(binary.BigEndian.Uint32(nodeData[dataOffset+62 : dataOffset+66])),
			})
		}
	}
}

func sortEntries(entries []filesystem.FileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}

// Probe reads just the MDB and returns it, for callers that only need
// volume metadata.
func Probe(r reader.SectorReader, partitionOffset uint64) (*MasterDirectoryBlock, error) {
	buf, err := r.ReadBytes(partitionOffset+consts.MAC_VOLUME_HEADER_OFFSET, mdbSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read master directory block: %w", err)
	}
	var mdb MasterDirectoryBlock
	if err := mdb.Unmarshal(buf); err != nil {
		return nil, err
	}
	if mdb.VolumeName == "" {
		return nil, fmt.Errorf("master directory block has no volume name")
	}
	return &mdb, nil
}

// PascalVolumeName decodes the Pascal-string name field of an MDB buffer
// without validating the rest of the block.
func PascalVolumeName(buf []byte) string {
	if len(buf) < 37 {
		return ""
	}
	return strings.TrimSpace(DecodeMacRoman([]byte(helpers.PascalString(buf[36:]))))
}

// Package hfsplus parses HFS+ (Mac OS Extended) volumes: the volume
// header, the catalog B-tree, and file contents through each file's first
// data fork extent.
package hfsplus

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/filesystem"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/reader"
)

const (
	folderRecord       = 1
	fileRecord         = 2
	folderThreadRecord = 3

	headerSize     = 512
	nodeDescriptor = 14

	// DefaultVolumeName is used when the root folder thread record cannot
	// be located.
	DefaultVolumeName = "HFS+ Volume"
)

// Extent is one run of consecutive allocation blocks.
type Extent struct {
	StartBlock uint32
	BlockCount uint32
}

// VolumeHeader holds the fields of the HFS+ volume header at byte 1024 of
// the volume.
type VolumeHeader struct {
	// Signature is 0x482B for HFS+ and 0x4858 for HFSX.
	Signature uint16
	// Version is 4 for HFS+ and 5 for HFSX.
	Version uint16
	// FileCount is the number of files on the volume.
	FileCount uint32
	// FolderCount is the number of folders on the volume.
	FolderCount uint32
	// BlockSize is the allocation block size in bytes.
	BlockSize uint32
	// TotalBlocks is the volume size in allocation blocks.
	TotalBlocks uint32
	// FreeBlocks is the number of unused allocation blocks.
	FreeBlocks uint32
	// CatalogExtent is the first extent of the catalog file.
	CatalogExtent Extent
}

// IsHFSX reports whether the volume is case-sensitive HFSX.
func (h VolumeHeader) IsHFSX() bool {
	return h.Signature == consts.HFSX_SIGNATURE
}

// HasSignature reports whether buf starts with an HFS+ or HFSX signature.
func HasSignature(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	sig := binary.BigEndian.Uint16(buf[0:2])
	return sig == consts.HFSPLUS_SIGNATURE || sig == consts.HFSX_SIGNATURE
}

// Unmarshal parses the volume header from a buffer starting at byte 1024
// of the volume.
func (h *VolumeHeader) Unmarshal(buf []byte) error {
	if len(buf) < headerSize {
		return fmt.Errorf("volume header truncated: %d bytes", len(buf))
	}
	if !HasSignature(buf) {
		return fmt.Errorf("invalid HFS+ signature: 0x%04X", binary.BigEndian.Uint16(buf[0:2]))
	}

	h.Signature = binary.BigEndian.Uint16(buf[0:2])
	h.Version = binary.BigEndian.Uint16(buf[2:4])
	h.FileCount = binary.BigEndian.Uint32(buf[32:36])
	h.FolderCount = binary.BigEndian.Uint32(buf[36:40])
	h.BlockSize = binary.BigEndian.Uint32(buf[40:44])
	h.TotalBlocks = binary.BigEndian.Uint32(buf[44:48])
	h.FreeBlocks = binary.BigEndian.Uint32(buf[48:52])

	// The catalog fork data starts at byte 112; its first extent sits 16
	// bytes in.
	h.CatalogExtent.StartBlock = binary.BigEndian.Uint32(buf[128:132])
	h.CatalogExtent.BlockCount = binary.BigEndian.Uint32(buf[132:136])
	return nil
}

// DecodeName converts a UTF-16BE catalog name to UTF-8.
func DecodeName(raw []byte) string {
	decoder := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	decoded, err := decoder.Bytes(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// FileSystem is a read-only view over an HFS+ volume.
type FileSystem struct {
	reader          reader.SectorReader
	partitionOffset uint64
	header          VolumeHeader
	nodeSize        uint16
	firstLeafNode   uint32
	volumeName      string
	logger          *logging.Logger
}

// Open parses the volume header and catalog B-tree header of the HFS+
// volume at partitionOffset within the image.
func Open(r reader.SectorReader, partitionOffset uint64, logger *logging.Logger) (*FileSystem, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	headerData, err := r.ReadBytes(partitionOffset+consts.MAC_VOLUME_HEADER_OFFSET, headerSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read volume header: %w", err)
	}
	fs := &FileSystem{reader: r, partitionOffset: partitionOffset, logger: logger}
	if err := fs.header.Unmarshal(headerData); err != nil {
		return nil, err
	}
	if fs.header.BlockSize == 0 {
		return nil, fmt.Errorf("volume header declares zero block size")
	}

	btHeader, err := r.ReadBytes(fs.catalogOffset(), 256)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header node: %w", err)
	}
	if len(btHeader) < 34 {
		return nil, fmt.Errorf("catalog header node truncated")
	}
	if int8(btHeader[8]) != 1 {
		return nil, fmt.Errorf("expected catalog header node, got kind %d", int8(btHeader[8]))
	}
	fs.firstLeafNode = binary.BigEndian.Uint32(btHeader[24:28])
	fs.nodeSize = binary.BigEndian.Uint16(btHeader[32:34])
	if fs.nodeSize == 0 || fs.nodeSize > 32768 {
		return nil, fmt.Errorf("invalid catalog node size: %d", fs.nodeSize)
	}

	fs.volumeName = fs.findVolumeName()
	logger.Debug("parsed HFS+ volume",
		"volume", fs.volumeName,
		"hfsx", fs.header.IsHFSX(),
		"nodeSize", fs.nodeSize,
		"firstLeafNode", fs.firstLeafNode)
	return fs, nil
}

// Header returns the parsed volume header.
func (fs *FileSystem) Header() VolumeHeader {
	return fs.header
}

func (fs *FileSystem) VolumeName() string {
	return fs.volumeName
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
	err := fs.walkLeaves(func(nodeData []byte, numRecords uint16) bool {
		fs.collectLeafRecords(nodeData, numRecords, dir.ID, &entries)
		return false
	})
	if err != nil {
		return nil, err
	}

	for i := range entries {
		entries[i].Path = filesystem.ChildPath(dir, entries[i].Name)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

func (fs *FileSystem) ReadFile(file filesystem.FileEntry) ([]byte, error) {
	return fs.ReadFileRange(file, 0, file.Size)
}

// ReadFileRange reads from the file's first data fork extent. Files whose
// data spans multiple extents are truncated at the first extent boundary.
func (fs *FileSystem) ReadFileRange(file filesystem.FileEntry, offset uint64, length uint64) ([]byte, error) {
	if file.IsDir() {
		return nil, fmt.Errorf("%q is a directory", file.Name)
	}

	fork, err := fs.findFileFork(file.ID)
	if err != nil {
		return nil, err
	}
	if fork.extent.BlockCount == 0 || offset >= fork.logicalSize {
		return nil, nil
	}
	if offset+length > fork.logicalSize {
		length = fork.logicalSize - offset
	}
	extentBytes := uint64(fork.extent.BlockCount) * uint64(fs.header.BlockSize)
	if offset >= extentBytes {
		return nil, nil
	}
	if offset+length > extentBytes {
		length = extentBytes - offset
	}

	start := fs.partitionOffset +
		uint64(fork.extent.StartBlock)*uint64(fs.header.BlockSize) + offset
	data, err := fs.reader.ReadBytes(start, length)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", file.Name, err)
	}
	return data, nil
}

func (fs *FileSystem) catalogOffset() uint64 {
	return fs.partitionOffset +
		uint64(fs.header.CatalogExtent.StartBlock)*uint64(fs.header.BlockSize)
}

func (fs *FileSystem) readNode(node uint32) ([]byte, error) {
	offset := fs.catalogOffset() + uint64(node)*uint64(fs.nodeSize)
	data, err := fs.reader.ReadBytes(offset, uint64(fs.nodeSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog node %d: %w", node, err)
	}
	return data, nil
}

// walkLeaves visits every leaf node following the forward links, stopping
// early when visit returns true. A visit ceiling bounds corrupted chains.
func (fs *FileSystem) walkLeaves(visit func(nodeData []byte, numRecords uint16) bool) error {
	node := fs.firstLeafNode
	visited := uint32(0)
	for node != 0 && visited < consts.CATALOG_MAX_LEAF_NODES {
		visited++
		nodeData, err := fs.readNode(node)
		if err != nil {
			return err
		}
		if len(nodeData) < nodeDescriptor {
			return nil
		}
		next := binary.BigEndian.Uint32(nodeData[0:4])
		if int8(nodeData[8]) == -1 {
			numRecords := binary.BigEndian.Uint16(nodeData[10:12])
			if visit(nodeData, numRecords) {
				return nil
			}
		}
		node = next
	}
	return nil
}

// leafRecord locates record i of a leaf node and returns the record
// offset and the data offset past the key.
func (fs *FileSystem) leafRecord(nodeData []byte, i int) (recordOffset int, dataOffset int, ok bool) {
	offsetPos := int(fs.nodeSize) - 2 - i*2
	if offsetPos < 0 || offsetPos+2 > len(nodeData) {
		return 0, 0, false
	}
	recordOffset = int(binary.BigEndian.Uint16(nodeData[offsetPos : offsetPos+2]))
	if recordOffset+10 > len(nodeData) {
		return 0, 0, false
	}
	keyLen := int(binary.BigEndian.Uint16(nodeData[recordOffset : recordOffset+2]))
	if keyLen < 6 {
		return 0, 0, false
	}
	dataOffset = recordOffset + 2 + keyLen
	if dataOffset+2 > len(nodeData) {
		return 0, 0, false
	}
	return recordOffset, dataOffset, true
}

func (fs *FileSystem) collectLeafRecords(nodeData []byte, numRecords uint16, parentID uint32, entries *[]filesystem.FileEntry) {
	for i := 0; i < int(numRecords); i++ {
		recordOffset, dataOffset, ok := fs.leafRecord(nodeData, i)
		if !ok {
			continue
		}
		if binary.BigEndian.Uint32(nodeData[recordOffset+2:recordOffset+6]) != parentID {
			continue
		}

		nameLen := int(binary.BigEndian.Uint16(nodeData[recordOffset+6 : recordOffset+8]))
		if nameLen == 0 {
			// Thread record.
			continue
		}
		nameEnd := recordOffset + 8 + nameLen*2
		if nameEnd > len(nodeData) {
			continue
		}
		name := DecodeName(nodeData[recordOffset+8 : nameEnd])
		if name == "" {
			continue
		}

		switch int16(binary.BigEndian.Uint16(nodeData[dataOffset : dataOffset+2])) {
		case folderRecord:
			if dataOffset+12 > len(nodeData) {
				continue
			}
			*entries = append(*entries, filesystem.FileEntry{
				Name: name,
				Type: filesystem.EntryTypeDirectory,
				ID:   binary.BigEndian.Uint32(nodeData[dataOffset+8 : dataOffset+12]),
			})
		case fileRecord:
			if dataOffset+96 > len(nodeData) {
				continue
			}
			*entries = append(*entries, filesystem.FileEntry{
				Name: name,
				Type: filesystem.EntryTypeFile,
				ID:   binary.BigEndian.Uint32(nodeData[dataOffset+8 : dataOffset+12]),
				Size: binary.BigEndian.Uint64(nodeData[dataOffset+88 : dataOffset+96]),
			})
		}
	}
}

type forkInfo struct {
	logicalSize uint64
	extent      Extent
}

// findFileFork scans the catalog for the file record with the given CNID
// and returns its data fork size and first extent.
func (fs *FileSystem) findFileFork(cnid uint32) (forkInfo, error) {
	var fork forkInfo
	found := false

	err := fs.walkLeaves(func(nodeData []byte, numRecords uint16) bool {
		for i := 0; i < int(numRecords); i++ {
			_, dataOffset, ok := fs.leafRecord(nodeData, i)
			if !ok {
				continue
			}
			if dataOffset+112 > len(nodeData) {
				continue
			}
			if int16(binary.BigEndian.Uint16(nodeData[dataOffset:dataOffset+2])) != fileRecord {
				continue
			}
			if binary.BigEndian.Uint32(nodeData[dataOffset+8:dataOffset+12]) != cnid {
				continue
			}

			// The data fork starts 88 bytes into the record; its first
			// extent sits 16 bytes into the fork.
			forkOffset := dataOffset + 88
			fork.logicalSize = binary.BigEndian.Uint64(nodeData[forkOffset : forkOffset+8])
			fork.extent.StartBlock = binary.BigEndian.Uint32(nodeData[forkOffset+16 : forkOffset+20])
			fork.extent.BlockCount = binary.BigEndian.Uint32(nodeData[forkOffset+20 : forkOffset+24])
			found = true
			return true
		}
		return false
	})
	if err != nil {
		return forkInfo{}, err
	}
	if !found {
		return forkInfo{}, fmt.Errorf("file CNID %d: %w", cnid, filesystem.ErrNotFound)
	}
	return fork, nil
}

// findVolumeName locates the root folder's thread record, whose key has
// parent CNID 2 and an empty name; the record payload carries the actual
// folder name.
func (fs *FileSystem) findVolumeName() string {
	name := DefaultVolumeName

	_ = fs.walkLeaves(func(nodeData []byte, numRecords uint16) bool {
		for i := 0; i < int(numRecords); i++ {
			recordOffset, dataOffset, ok := fs.leafRecord(nodeData, i)
			if !ok {
				continue
			}
			if binary.BigEndian.Uint32(nodeData[recordOffset+2:recordOffset+6]) != consts.MAC_ROOT_FOLDER_ID {
				continue
			}
			if binary.BigEndian.Uint16(nodeData[recordOffset+6:recordOffset+8]) != 0 {
				continue
			}
			if dataOffset+10 > len(nodeData) {
				continue
			}
			if int16(binary.BigEndian.Uint16(nodeData[dataOffset:dataOffset+2])) != folderThreadRecord {
				continue
			}

			threadNameLen := int(binary.BigEndian.Uint16(nodeData[dataOffset+8 : dataOffset+10]))
			nameEnd := dataOffset + 10 + threadNameLen*2
			if threadNameLen == 0 || nameEnd > len(nodeData) {
				continue
			}
			if decoded := DecodeName(nodeData[dataOffset+10 : nameEnd]); decoded != "" {
				name = decoded
			}
			return true
		}
		return false
	})
	return name
}

// Probe reads just the volume header and returns it, for callers that only
// need volume metadata.
func Probe(r reader.SectorReader, partitionOffset uint64) (*VolumeHeader, error) {
	buf, err := r.ReadBytes(partitionOffset+consts.MAC_VOLUME_HEADER_OFFSET, headerSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read volume header: %w", err)
	}
	var header VolumeHeader
	if err := header.Unmarshal(buf); err != nil {
		return nil, err
	}
	return &header, nil
}

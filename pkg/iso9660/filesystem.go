// Package iso9660 parses ISO 9660 volumes: the primary volume descriptor
// at sector 16 and the directory hierarchy it points at.
package iso9660

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/filesystem"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/reader"
)

const dirFlagDirectory = 0x02

// FileSystem is a read-only view over an ISO 9660 volume.
type FileSystem struct {
	reader reader.SectorReader
	pvd    PrimaryVolumeDescriptor
	logger *logging.Logger
}

// Open probes the volume descriptor at sector 16 and returns a FileSystem
// when it is a valid primary volume descriptor.
func Open(r reader.SectorReader, logger *logging.Logger) (*FileSystem, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	sector, err := r.ReadSector(consts.ISO9660_SYSTEM_AREA_SECTORS)
	if err != nil {
		return nil, fmt.Errorf("failed to read volume descriptor sector: %w", err)
	}

	fs := &FileSystem{reader: r, logger: logger}
	if err := fs.pvd.Unmarshal(sector); err != nil {
		return nil, err
	}
	logger.Debug("parsed primary volume descriptor",
		"volume", fs.pvd.VolumeIdentifier,
		"rootExtent", fs.pvd.RootDirectoryExtent,
		"rootSize", fs.pvd.RootDirectorySize)
	return fs, nil
}

// Descriptor returns the parsed primary volume descriptor.
func (fs *FileSystem) Descriptor() PrimaryVolumeDescriptor {
	return fs.pvd
}

func (fs *FileSystem) VolumeName() string {
	return fs.pvd.VolumeIdentifier
}

func (fs *FileSystem) Root() filesystem.FileEntry {
	return filesystem.FileEntry{
		Name: "/",
		Path: "/",
		Type: filesystem.EntryTypeDirectory,
		Size: uint64(fs.pvd.RootDirectorySize),
		ID:   fs.pvd.RootDirectoryExtent,
	}
}

func (fs *FileSystem) ListDirectory(dir filesystem.FileEntry) ([]filesystem.FileEntry, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir.Name)
	}

	data, err := fs.reader.ReadBytes(
		uint64(dir.ID)*consts.ISO9660_SECTOR_SIZE, dir.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", dir.Name, err)
	}

	var entries []filesystem.FileEntry
	offset := 0
	for offset < len(data) {
		recordLen := int(data[offset])
		if recordLen == 0 {
			// Records do not cross sector boundaries; a zero length
			// byte means the rest of the sector is padding.
			offset = (offset/int(consts.ISO9660_SECTOR_SIZE) + 1) * int(consts.ISO9660_SECTOR_SIZE)
			continue
		}
		if offset+recordLen > len(data) {
			break
		}
		record := data[offset : offset+recordLen]
		offset += recordLen

		entry, ok := parseDirectoryRecord(record)
		if !ok {
			continue
		}
		entry.Path = filesystem.ChildPath(dir, entry.Name)
		entries = append(entries, entry)
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

func (fs *FileSystem) ReadFileRange(file filesystem.FileEntry, offset uint64, length uint64) ([]byte, error) {
	if file.IsDir() {
		return nil, fmt.Errorf("%q is a directory", file.Name)
	}
	if offset >= file.Size {
		return nil, nil
	}
	if offset+length > file.Size {
		length = file.Size - offset
	}
	data, err := fs.reader.ReadBytes(
		uint64(file.ID)*consts.ISO9660_SECTOR_SIZE+offset, length)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", file.Name, err)
	}
	return data, nil
}

// parseDirectoryRecord decodes a single directory record. The self and
// parent pseudo entries are skipped.
func parseDirectoryRecord(record []byte) (filesystem.FileEntry, bool) {
	if len(record) < 34 {
		return filesystem.FileEntry{}, false
	}
	nameLen := int(record[32])
	if nameLen == 0 || 33+nameLen > len(record) {
		return filesystem.FileEntry{}, false
	}
	rawName := record[33 : 33+nameLen]
	if nameLen == 1 && (rawName[0] == 0x00 || rawName[0] == 0x01) {
		// "." and ".." entries.
		return filesystem.FileEntry{}, false
	}

	entryType := filesystem.EntryTypeFile
	if record[25]&dirFlagDirectory != 0 {
		entryType = filesystem.EntryTypeDirectory
	}

	name := string(rawName)
	// Strip the ";1" version suffix ISO 9660 appends to file identifiers.
	if idx := strings.IndexByte(name, ';'); idx >= 0 {
		name = name[:idx]
	}
	// Directory identifiers never carry a meaningful trailing dot; file
	// identifiers keep theirs (an extensionless file records as "NAME.").
	if entryType == filesystem.EntryTypeDirectory {
		name = strings.TrimRight(name, ".")
	}

	return filesystem.FileEntry{
		Name: name,
		Type: entryType,
		Size: uint64(binary.LittleEndian.Uint32(record[10:14])),
		ID:   binary.LittleEndian.Uint32(record[2:6]),
	}, true
}

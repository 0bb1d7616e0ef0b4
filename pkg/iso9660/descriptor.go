package iso9660

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/helpers"
)

// PrimaryVolumeDescriptor holds the identity fields of an ISO 9660 volume.
// Numeric fields are decoded from the little-endian half of the
// both-endian encodings.
type PrimaryVolumeDescriptor struct {
	// SystemIdentifier names the system the volume is intended for.
	SystemIdentifier string
	// VolumeIdentifier is the volume label.
	VolumeIdentifier string
	// VolumeSetIdentifier identifies the volume set the disc belongs to.
	VolumeSetIdentifier string
	// PublisherIdentifier names the volume's publisher.
	PublisherIdentifier string
	// ApplicationIdentifier names the mastering application.
	ApplicationIdentifier string
	// VolumeSpaceSize is the volume size in logical sectors.
	VolumeSpaceSize uint32
	// RootDirectoryExtent is the first sector of the root directory.
	RootDirectoryExtent uint32
	// RootDirectorySize is the root directory's length in bytes.
	RootDirectorySize uint32
}

// HasPVDSignature reports whether the sector carries a Primary Volume
// Descriptor header (type 1, "CD001", version 1).
func HasPVDSignature(sector []byte) bool {
	if len(sector) < 7 {
		return false
	}
	return sector[0] == consts.ISO9660_PVD_TYPE &&
		string(sector[1:6]) == consts.ISO9660_STD_IDENTIFIER &&
		sector[6] == consts.ISO9660_VOLUME_DESC_VERSION
}

// Unmarshal parses the descriptor from the raw sector at sector 16.
func (pvd *PrimaryVolumeDescriptor) Unmarshal(sector []byte) error {
	if len(sector) < consts.ISO9660_SECTOR_SIZE {
		return fmt.Errorf("volume descriptor sector truncated: %d bytes", len(sector))
	}
	if !HasPVDSignature(sector) {
		return fmt.Errorf("sector is not a primary volume descriptor")
	}

	pvd.SystemIdentifier = helpers.TrimPaddedString(sector[8:40])
	pvd.VolumeIdentifier = helpers.TrimPaddedString(sector[40:72])
	pvd.VolumeSpaceSize = binary.LittleEndian.Uint32(sector[80:84])
	pvd.VolumeSetIdentifier = helpers.TrimPaddedString(sector[190:318])
	pvd.PublisherIdentifier = helpers.TrimPaddedString(sector[318:446])
	pvd.ApplicationIdentifier = helpers.TrimPaddedString(sector[574:702])

	root := sector[156 : 156+34]
	pvd.RootDirectoryExtent = binary.LittleEndian.Uint32(root[2:6])
	pvd.RootDirectorySize = binary.LittleEndian.Uint32(root[10:14])
	return nil
}

package consts

const (
	// Number of system area sectors preceding the volume descriptor set.
	ISO9660_SYSTEM_AREA_SECTORS = 16

	// Standard ISO9660 identifier.
	ISO9660_STD_IDENTIFIER = "CD001"

	// ISO9660 volume descriptor version (always 1).
	ISO9660_VOLUME_DESC_VERSION = 1

	// ISO9660 default (cooked) sector size.
	ISO9660_SECTOR_SIZE = 2048

	// Byte offset of the Primary Volume Descriptor from the start of the
	// logical volume (sector 16 in cooked sector space).
	ISO9660_PVD_OFFSET = ISO9660_SYSTEM_AREA_SECTORS * ISO9660_SECTOR_SIZE

	// Volume descriptor type for the Primary Volume Descriptor.
	ISO9660_PVD_TYPE = 1

	// Raw CD sector size (sync + header + user data + EDC/ECC).
	CD_SECTOR_SIZE_RAW = 2352

	// Raw CD sector size plus 96 bytes of subchannel data. CHD stores
	// CD tracks as frames of this size.
	CD_FRAME_SIZE = 2448

	// Offset to user data within a raw Mode 1 sector (12 sync + 4 header).
	CD_MODE1_DATA_OFFSET = 16

	// Offset to user data within a raw Mode 2 XA sector.
	CD_MODE2_DATA_OFFSET = 24

	// CD audio frames per second. A frame is the addressing unit for
	// TOC offsets and disc ID calculation.
	FRAMES_PER_SECOND = 75

	// Fixed pregap bias applied to track offsets, in frames.
	PREGAP_FRAMES = 150

	// HFS and HFS+ place their volume header at this byte offset.
	MAC_VOLUME_HEADER_OFFSET = 1024

	// HFS Master Directory Block signature ("BD").
	HFS_SIGNATURE = 0x4244

	// HFS+ volume header signature ("H+").
	HFSPLUS_SIGNATURE = 0x482B

	// HFSX volume header signature ("HX").
	HFSX_SIGNATURE = 0x4858

	// Apple Partition Map block size.
	APM_BLOCK_SIZE = 512

	// Driver Descriptor Map signature at block 0 ("ER").
	APM_DDM_SIGNATURE = 0x4552

	// Partition map entry signature ("PM").
	APM_ENTRY_SIGNATURE = 0x504D

	// Catalog node id of the HFS/HFS+ root folder.
	MAC_ROOT_FOLDER_ID = 2

	// Hard ceiling on catalog leaf nodes visited during a scan. Guards
	// against a corrupted linked list forming a cycle.
	CATALOG_MAX_LEAF_NODES = 10000
)

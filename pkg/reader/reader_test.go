package reader

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

// buildRawTrack frames each 2048-byte data sector into a 2352-byte raw
// sector with a 16-byte header prefix and 288 bytes of trailing EDC/ECC.
func buildRawTrack(data []byte) []byte {
	var out []byte
	for off := 0; off < len(data); off += int(consts.ISO9660_SECTOR_SIZE) {
		frame := make([]byte, consts.CD_SECTOR_SIZE_RAW)
		copy(frame[consts.CD_MODE1_DATA_OFFSET:], data[off:off+int(consts.ISO9660_SECTOR_SIZE)])
		out = append(out, frame...)
	}
	return out
}

func TestImageReaderSectors(t *testing.T) {
	image := make([]byte, 4*consts.ISO9660_SECTOR_SIZE)
	for i := range image {
		image[i] = byte(i / int(consts.ISO9660_SECTOR_SIZE))
	}
	r := NewImageReader(bytes.NewReader(image))

	require.Equal(t, uint32(consts.ISO9660_SECTOR_SIZE), r.SectorSize())

	sector, err := r.ReadSector(2)
	require.NoError(t, err)
	require.Len(t, sector, int(consts.ISO9660_SECTOR_SIZE))
	require.Equal(t, byte(2), sector[0])

	sectors, err := r.ReadSectors(1, 2)
	require.NoError(t, err)
	require.Len(t, sectors, 2*int(consts.ISO9660_SECTOR_SIZE))
	require.Equal(t, byte(1), sectors[0])
	require.Equal(t, byte(2), sectors[consts.ISO9660_SECTOR_SIZE])
}

func TestImageReaderBytes(t *testing.T) {
	image := make([]byte, 2*consts.ISO9660_SECTOR_SIZE)
	copy(image[2040:], []byte("ABCDEFGHIJKL"))
	r := NewImageReader(bytes.NewReader(image))

	// Read spanning the sector boundary.
	data, err := r.ReadBytes(2040, 12)
	require.NoError(t, err)
	require.Equal(t, []byte("ABCDEFGHIJKL"), data)
}

func TestImageReaderRejectsShortReads(t *testing.T) {
	// A truncated image must never yield a partial sector.
	image := make([]byte, 1000)
	r := NewImageReader(bytes.NewReader(image))

	_, err := r.ReadSector(0)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = r.ReadBytes(512, 1024)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = r.ReadSectors(4, 2)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTrackReaderRejectsShortReads(t *testing.T) {
	raw := make([]byte, consts.CD_SECTOR_SIZE_RAW+100)
	r := NewTrackReader(bytes.NewReader(raw), TrackInfo{
		Number:        1,
		RawSectorSize: consts.CD_SECTOR_SIZE_RAW,
		DataOffset:    consts.CD_MODE1_DATA_OFFSET,
	})

	sector, err := r.ReadSector(0)
	require.NoError(t, err)
	require.Len(t, sector, int(consts.ISO9660_SECTOR_SIZE))

	_, err = r.ReadSector(1)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTrackReaderStripsFraming(t *testing.T) {
	data := make([]byte, 2*consts.ISO9660_SECTOR_SIZE)
	copy(data, []byte("first sector"))
	copy(data[consts.ISO9660_SECTOR_SIZE:], []byte("second sector"))
	raw := buildRawTrack(data)

	r := NewTrackReader(bytes.NewReader(raw), TrackInfo{
		Number:        1,
		Mode:          "MODE1/2352",
		RawSectorSize: consts.CD_SECTOR_SIZE_RAW,
		DataOffset:    consts.CD_MODE1_DATA_OFFSET,
	})

	sector, err := r.ReadSector(0)
	require.NoError(t, err)
	require.Equal(t, []byte("first sector"), sector[:12])

	sector, err = r.ReadSector(1)
	require.NoError(t, err)
	require.Equal(t, []byte("second sector"), sector[:13])

	// Byte reads cross the frame boundary transparently.
	spanned, err := r.ReadBytes(consts.ISO9660_SECTOR_SIZE-4, 8)
	require.NoError(t, err)
	require.Len(t, spanned, 8)
	require.Equal(t, []byte("seco"), spanned[4:])
}

func TestTrackReaderMatchesCookedImage(t *testing.T) {
	// The same logical data read through a raw track and a cooked image
	// must be identical.
	data := make([]byte, 3*consts.ISO9660_SECTOR_SIZE)
	for i := range data {
		data[i] = byte(i % 251)
	}

	cooked := NewImageReader(bytes.NewReader(data))
	rawTrack := NewTrackReader(bytes.NewReader(buildRawTrack(data)), TrackInfo{
		Number:        1,
		RawSectorSize: consts.CD_SECTOR_SIZE_RAW,
		DataOffset:    consts.CD_MODE1_DATA_OFFSET,
	})

	want, err := cooked.ReadSectors(0, 3)
	require.NoError(t, err)
	got, err := rawTrack.ReadSectors(0, 3)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

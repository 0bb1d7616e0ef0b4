package disc

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/apm"
	"github.com/bgrewell/disc-kit/pkg/chd"
	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/cuesheet"
	"github.com/bgrewell/disc-kit/pkg/filesystem"
	"github.com/bgrewell/disc-kit/pkg/hfs"
	"github.com/bgrewell/disc-kit/pkg/hfsplus"
	"github.com/bgrewell/disc-kit/pkg/identify"
	"github.com/bgrewell/disc-kit/pkg/info"
	"github.com/bgrewell/disc-kit/pkg/iso9660"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/option"
	"github.com/bgrewell/disc-kit/pkg/reader"
	"github.com/bgrewell/disc-kit/pkg/toc"
)

// sniffSize is how much of the image prefix is examined when looking for
// partition maps and filesystem signatures.
const sniffSize = 64 * 1024

// Identify reads a disc image and extracts everything it can about it:
// container format, filesystem type, volume label, track layout and a best
// guess at the title. Structural failures degrade rather than fail; the
// result always carries at least filename-derived information.
func Identify(location string, opts ...option.OpenOption) (*info.DiscInfo, error) {
	options := option.NewOpenOptions(opts...)

	if _, err := os.Stat(location); err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	format := info.FormatFromPath(location)
	if format == info.FormatUnknown {
		return nil, fmt.Errorf("unsupported image extension %q", filepath.Ext(location))
	}

	d := &info.DiscInfo{
		Path:   location,
		Format: format,
	}
	if options.ParseFilename {
		d.ParsedFilename = identify.ParseFilename(location)
	}

	switch format {
	case info.FormatImage:
		identifyImage(d, &options)
	case info.FormatBinCue:
		identifyBinCue(d, &options)
	case info.FormatCHD:
		identifyCHD(d, &options)
	case info.FormatMDS:
		// Sidecar descriptor parsing is not implemented yet. The result
		// still carries the filename-derived fields.
		options.Logger.Info("mds/mdf descriptors are not parsed, using the filename", "path", location)
	}

	finishIdentification(d)
	return d, nil
}

// finishIdentification settles the title and confidence from whatever the
// format handlers managed to collect. A clean volume label wins, container
// metadata comes next and the filename is the floor.
func finishIdentification(d *info.DiscInfo) {
	if identify.LabelIsUsable(d.VolumeLabel) {
		d.Title = identify.NormalizeVolumeLabel(d.VolumeLabel)
		d.Confidence = identify.ConfidenceHigh
		return
	}
	d.Title = d.ParsedFilename.Title
	if d.TOC != nil || d.AudioOnly {
		d.Confidence = identify.ConfidenceMedium
		return
	}
	d.Confidence = identify.ConfidenceLow
}

func identifyImage(d *info.DiscInfo, options *option.OpenOptions) {
	if !options.ProbeFilesystems {
		return
	}
	f, err := os.Open(d.Path)
	if err != nil {
		options.Logger.Error(err, "failed to open image, using the filename", "path", d.Path)
		return
	}
	defer f.Close()

	probeVolume(d, reader.NewImageReader(f), options.Logger)
}

func identifyBinCue(d *info.DiscInfo, options *option.OpenOptions) {
	cuePath, ok := locateCueSheet(d.Path)
	if !ok {
		options.Logger.Info("no cue sheet found for bin, using the filename", "path", d.Path)
		return
	}

	text, err := os.ReadFile(cuePath)
	if err != nil {
		options.Logger.Error(err, "failed to read cue sheet", "path", cuePath)
		return
	}
	sheet, err := cuesheet.Parse(string(text))
	if err != nil {
		options.Logger.Error(err, "failed to parse cue sheet", "path", cuePath)
		return
	}

	d.TOC = cueTOC(cuePath, sheet)

	file, track, ok := sheet.FirstDataTrack()
	if !ok {
		d.AudioOnly = true
		return
	}
	if !options.ProbeFilesystems {
		return
	}

	binPath, err := cuesheet.ResolveBinPath(cuePath, file.Path)
	if err != nil {
		options.Logger.Error(err, "failed to locate bin file", "cue", cuePath)
		return
	}
	f, err := os.Open(binPath)
	if err != nil {
		options.Logger.Error(err, "failed to open bin file", "path", binPath)
		return
	}
	defer f.Close()

	probeVolume(d, reader.NewTrackReader(f, trackInfo(track)), options.Logger)
}

func identifyCHD(d *info.DiscInfo, options *option.OpenOptions) {
	c, err := chd.Open(d.Path, options.Logger)
	if err != nil {
		options.Logger.Error(err, "failed to open chd, using the filename", "path", d.Path)
		return
	}
	defer c.Close()

	d.TOC = chdTOC(c)
	if c.AudioOnly() {
		d.AudioOnly = true
		return
	}
	if !options.ProbeFilesystems {
		return
	}

	hr, err := c.DataTrackReader()
	if err != nil {
		options.Logger.Debug("no readable data track in chd", "error", err)
		return
	}
	probeVolume(d, hr, options.Logger)
}

// probeVolume looks for a filesystem through the reader and records what it
// finds. Apple partition maps are honored first, then direct HFS and HFS+
// signatures, then ISO 9660.
func probeVolume(d *info.DiscInfo, r reader.SectorReader, logger *logging.Logger) {
	offset := partitionOffset(r, logger)

	if mdb, err := hfs.Probe(r, offset); err == nil {
		d.Filesystem = info.FilesystemHFS
		d.VolumeLabel = mdb.VolumeName
		return
	}
	if _, err := hfsplus.Probe(r, offset); err == nil {
		d.Filesystem = info.FilesystemHFSPlus
		if fs, err := hfsplus.Open(r, offset, logger); err == nil {
			d.VolumeLabel = fs.VolumeName()
		}
		return
	}
	if fs, err := iso9660.Open(r, logger); err == nil {
		desc := fs.Descriptor()
		d.Filesystem = info.FilesystemISO9660
		d.VolumeLabel = fs.VolumeName()
		d.Descriptor = &desc
		return
	}
	logger.Debug("no recognizable filesystem", "path", d.Path)
}

// partitionOffset returns the byte offset of the first HFS family partition
// when the image carries an Apple partition map, and 0 otherwise.
func partitionOffset(r reader.SectorReader, logger *logging.Logger) uint64 {
	buf, err := r.ReadBytes(0, 2*consts.APM_BLOCK_SIZE)
	if err != nil || !apm.HasDriverDescriptor(buf) {
		return 0
	}
	// Pull in further map blocks one at a time so a map larger than the
	// image claims still parses from what is actually there.
	for off := uint64(len(buf)); off < sniffSize; off += consts.APM_BLOCK_SIZE {
		block, err := r.ReadBytes(off, consts.APM_BLOCK_SIZE)
		if err != nil {
			break
		}
		buf = append(buf, block...)
		if binary.BigEndian.Uint16(block[0:2]) != consts.APM_ENTRY_SIGNATURE {
			break
		}
	}
	entries, err := apm.ParsePartitionMap(buf)
	if err != nil {
		logger.Debug("failed to parse apple partition map", "error", err)
		return 0
	}
	offset, err := apm.FindHFSPartition(entries)
	if err != nil {
		logger.Debug("partition map has no HFS partition", "error", err)
		return 0
	}
	logger.Trace("found HFS partition", "offset", offset)
	return offset
}

// locateCueSheet maps a bin or cue path to the cue sheet to parse.
func locateCueSheet(path string) (string, bool) {
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return path, true
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".cue", ".CUE"} {
		if _, err := os.Stat(stem + ext); err == nil {
			return stem + ext, true
		}
	}
	return "", false
}

// trackInfo converts a cue sheet track into the reader's track description.
func trackInfo(track cuesheet.Track) reader.TrackInfo {
	return reader.TrackInfo{
		Number:        track.Number,
		Mode:          track.Mode,
		FileOffset:    uint64(track.StartFrame()) * uint64(track.RawSectorSize()),
		RawSectorSize: track.RawSectorSize(),
		DataOffset:    track.DataOffset(),
		Audio:         track.IsAudio(),
	}
}

// cueTOC rebuilds the disc layout from a cue sheet. Only audio tracks
// enter the TOC; a disc with no audio tracks has none. Track lengths
// depend on the size of the backing files, so missing bin files also
// yield no TOC.
func cueTOC(cuePath string, sheet *cuesheet.Sheet) *toc.DiscTOC {
	var entries []toc.TrackEntry
	var discFrames uint32
	for _, f := range sheet.Files {
		if len(f.Tracks) == 0 {
			continue
		}
		binPath, err := cuesheet.ResolveBinPath(cuePath, f.Path)
		if err != nil {
			return nil
		}
		st, err := os.Stat(binPath)
		if err != nil {
			return nil
		}
		for _, t := range f.Tracks {
			if !t.IsAudio() {
				continue
			}
			entries = append(entries, toc.TrackEntry{
				Number: uint8(t.Number),
				Offset: discFrames + t.StartFrame(),
				Type:   t.Mode,
			})
		}
		discFrames += uint32(uint64(st.Size()) / uint64(f.Tracks[0].RawSectorSize()))
	}
	return toc.FromTracks(entries, discFrames)
}

// chdTOC rebuilds the disc layout from CHD track metadata, audio tracks
// only.
func chdTOC(c *chd.CHD) *toc.DiscTOC {
	var entries []toc.TrackEntry
	for _, t := range c.Tracks() {
		if !t.IsAudio() {
			continue
		}
		entries = append(entries, toc.TrackEntry{
			Number: uint8(t.Number),
			Offset: t.FrameOffset,
			Type:   t.Type,
		})
	}
	return toc.FromTracks(entries, c.TotalFrames())
}

// Volume is an opened filesystem together with the resources backing it.
type Volume struct {
	fs     filesystem.Filesystem
	closer io.Closer
}

// Filesystem returns the opened filesystem.
func (v *Volume) Filesystem() filesystem.Filesystem {
	return v.fs
}

// Close releases the backing file.
func (v *Volume) Close() error {
	if v.closer != nil {
		return v.closer.Close()
	}
	return nil
}

// OpenFilesystem opens the filesystem inside an identified disc image for
// browsing and file reads. The caller owns the returned Volume and must
// close it.
func OpenFilesystem(d *info.DiscInfo, opts ...option.OpenOption) (*Volume, error) {
	options := option.NewOpenOptions(opts...)

	switch d.Format {
	case info.FormatImage:
		f, err := os.Open(d.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open image: %w", err)
		}
		fs, err := openVolume(reader.NewImageReader(f), options.Logger)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &Volume{fs: fs, closer: f}, nil

	case info.FormatBinCue:
		cuePath, ok := locateCueSheet(d.Path)
		if !ok {
			return nil, fmt.Errorf("no cue sheet found for %q", d.Path)
		}
		text, err := os.ReadFile(cuePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read cue sheet: %w", err)
		}
		sheet, err := cuesheet.Parse(string(text))
		if err != nil {
			return nil, err
		}
		file, track, ok := sheet.FirstDataTrack()
		if !ok {
			return nil, fmt.Errorf("cue sheet has no data track")
		}
		binPath, err := cuesheet.ResolveBinPath(cuePath, file.Path)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(binPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bin file: %w", err)
		}
		fs, err := openVolume(reader.NewTrackReader(f, trackInfo(track)), options.Logger)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &Volume{fs: fs, closer: f}, nil

	case info.FormatCHD:
		c, err := chd.Open(d.Path, options.Logger)
		if err != nil {
			return nil, err
		}
		hr, err := c.DataTrackReader()
		if err != nil {
			c.Close()
			return nil, err
		}
		fs, err := openVolume(hr, options.Logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		return &Volume{fs: fs, closer: c}, nil

	default:
		return nil, fmt.Errorf("filesystem access is not supported for %s images", d.Format)
	}
}

// openVolume opens whichever supported filesystem the reader holds.
func openVolume(r reader.SectorReader, logger *logging.Logger) (filesystem.Filesystem, error) {
	offset := partitionOffset(r, logger)

	if _, err := hfs.Probe(r, offset); err == nil {
		return hfs.Open(r, offset, logger)
	}
	if _, err := hfsplus.Probe(r, offset); err == nil {
		return hfsplus.Open(r, offset, logger)
	}
	if fs, err := iso9660.Open(r, logger); err == nil {
		return fs, nil
	}
	return nil, fmt.Errorf("no supported filesystem found")
}

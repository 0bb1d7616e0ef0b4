package info

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatFromPath(t *testing.T) {
	require.Equal(t, FormatImage, FormatFromPath("game.iso"))
	require.Equal(t, FormatImage, FormatFromPath("game.ISO"))
	require.Equal(t, FormatImage, FormatFromPath("game.toast"))
	require.Equal(t, FormatBinCue, FormatFromPath("game.bin"))
	require.Equal(t, FormatBinCue, FormatFromPath("game.cue"))
	require.Equal(t, FormatCHD, FormatFromPath("game.chd"))
	require.Equal(t, FormatMDS, FormatFromPath("game.mds"))
	require.Equal(t, FormatUnknown, FormatFromPath("game.txt"))
	require.Equal(t, FormatUnknown, FormatFromPath("game"))
}

func TestFormatNames(t *testing.T) {
	require.Equal(t, "ISO 9660", FormatImage.String())
	require.Equal(t, "BIN/CUE", FormatBinCue.String())
	require.Equal(t, "CHD (Compressed Hunks of Data)", FormatCHD.String())
	require.Equal(t, "Unknown", FormatUnknown.String())
}

func TestFilesystemNames(t *testing.T) {
	require.Equal(t, "ISO 9660", FilesystemISO9660.String())
	require.Equal(t, "HFS", FilesystemHFS.String())
	require.Equal(t, "HFS+", FilesystemHFSPlus.String())
	require.Equal(t, "Unknown", FilesystemUnknown.String())
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	require.Contains(t, exts, "iso")
	require.Contains(t, exts, "chd")
	require.Contains(t, exts, "mdf")
	require.Len(t, exts, 7)
}

func TestCoverArtPath(t *testing.T) {
	d := &DiscInfo{Path: "/images/Game (USA).iso"}
	require.Equal(t, "/images/Game (USA).jpg", d.CoverArtPath())
	require.False(t, d.HasCoverArt())
}

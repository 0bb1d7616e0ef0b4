package identify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleFilename(t *testing.T) {
	parsed := ParseFilename("Final Fantasy VII.iso")
	require.Equal(t, "Final Fantasy VII", parsed.Title)
	require.Equal(t, "Final Fantasy VII", parsed.Original)
	require.Empty(t, parsed.Region)
	require.Zero(t, parsed.DiscNumber)
}

func TestParseFilenameWithRegion(t *testing.T) {
	parsed := ParseFilename("Final Fantasy VII (USA).iso")
	require.Equal(t, "Final Fantasy VII", parsed.Title)
	require.Equal(t, "USA", parsed.Region)
}

func TestParseFilenameWithDisc(t *testing.T) {
	parsed := ParseFilename("/images/Final Fantasy VII (USA) (Disc 1).iso")
	require.Equal(t, "Final Fantasy VII", parsed.Title)
	require.Equal(t, "USA", parsed.Region)
	require.Equal(t, 1, parsed.DiscNumber)
}

func TestParseFilenameWithSerial(t *testing.T) {
	parsed := ParseFilename("Final Fantasy VII [SCUS-94163].iso")
	require.Equal(t, "Final Fantasy VII", parsed.Title)
	require.Equal(t, "SCUS-94163", parsed.Serial)
}

func TestParseFilenameWithVersion(t *testing.T) {
	parsed := ParseFilename("Game Title (USA) (v1.1).iso")
	require.Equal(t, "Game Title", parsed.Title)
	require.Equal(t, "v1.1", parsed.Version)
}

func TestParseFilenameWithUnderscores(t *testing.T) {
	parsed := ParseFilename("Final_Fantasy_VII.iso")
	require.Equal(t, "Final Fantasy VII", parsed.Title)
}

func TestParseComplexFilename(t *testing.T) {
	parsed := ParseFilename("Final Fantasy VII (USA) (Disc 1) [SCUS-94163] (v1.0).chd")
	require.Equal(t, "Final Fantasy VII", parsed.Title)
	require.Equal(t, "USA", parsed.Region)
	require.Equal(t, 1, parsed.DiscNumber)
	require.Equal(t, "SCUS-94163", parsed.Serial)
	require.Equal(t, "v1.0", parsed.Version)
}

func TestParseFilenameStripsUnknownTags(t *testing.T) {
	parsed := ParseFilename("Game Title (Unl) [!].bin")
	require.Equal(t, "Game Title", parsed.Title)
}

func TestNormalizeVolumeLabel(t *testing.T) {
	require.Equal(t, "GAME TITLE", NormalizeVolumeLabel("GAME_TITLE"))
	require.Equal(t, "GAME TITLE", NormalizeVolumeLabel("  GAME   TITLE  "))
}

func TestLabelIsUsable(t *testing.T) {
	require.True(t, LabelIsUsable("MY_GAME"))
	require.False(t, LabelIsUsable(""))
	require.False(t, LabelIsUsable("AB"))
	require.False(t, LabelIsUsable("12345"))
}

func TestConfidenceLevelString(t *testing.T) {
	require.Equal(t, "High (volume label)", ConfidenceHigh.String())
	require.Equal(t, "Medium (metadata)", ConfidenceMedium.String())
	require.Equal(t, "Low (filename)", ConfidenceLow.String())
}

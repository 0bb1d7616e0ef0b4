package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bgrewell/disc-kit"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/option"
	"github.com/bgrewell/usage"
	"github.com/theckman/yacspin"
)

var (
	version = "dev"
)

// InitializeSpinner sets up and starts the yacspin spinner.
func InitializeSpinner() (*yacspin.Spinner, error) {
	settings := yacspin.Config{
		Frequency:         100 * time.Millisecond,
		ShowCursor:        false,
		SpinnerAtEnd:      false,
		CharSet:           yacspin.CharSets[14],
		Colors:            []string{"fgHiCyan"},
		StopColors:        []string{"fgHiGreen"},
		StopFailColors:    []string{"fgHiRed"},
		StopFailCharacter: "✗",
		StopCharacter:     "✓",
	}

	spinner, err := yacspin.New(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create spinner: %w", err)
	}
	if err := spinner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start spinner: %w", err)
	}
	return spinner, nil
}

func main() {

	u := usage.NewUsage()
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose output", "", nil)
	trace := u.AddBooleanOption("vv", "trace", false, "Print trace output", "", nil)
	noProbe := u.AddBooleanOption("n", "no-probe", false, "Skip filesystem probing", "", nil)
	path := u.AddArgument(1, "image-path", "Path to the disc image to identify", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("location of the disc image <image-path> must be provided"))
		os.Exit(1)
	}

	verbosity := logging.LEVEL_INFO
	if *verbose {
		verbosity = logging.LEVEL_DEBUG
	}
	if *trace {
		verbosity = logging.LEVEL_TRACE
	}
	logger := logging.NewSimpleLogger(os.Stderr, verbosity, true)

	spinner, err := InitializeSpinner()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize spinner: %v\n", err)
	}

	if spinner != nil {
		spinner.Message(" identifying " + *path)
	}

	d, err := disc.Identify(
		*path,
		option.WithLogger(logger),
		option.WithProbeFilesystems(!*noProbe),
	)
	if err != nil {
		if spinner != nil {
			spinner.StopFailMessage(fmt.Sprintf("Failed to identify image: %v", err))
			spinner.StopFail()
		}
		u.PrintError(err)
		os.Exit(1)
	}

	if spinner != nil {
		spinner.StopMessage(" identified " + *path)
		spinner.Stop()
	}

	fmt.Printf("discinfo v%s\n\n", version)
	fmt.Printf("Path:        %s\n", d.Path)
	fmt.Printf("Format:      %s\n", d.Format)
	fmt.Printf("Filesystem:  %s\n", d.Filesystem)
	if d.VolumeLabel != "" {
		fmt.Printf("Volume:      %s\n", d.VolumeLabel)
	}
	fmt.Printf("Title:       %s\n", d.Title)
	fmt.Printf("Confidence:  %s\n", d.Confidence)
	if d.ParsedFilename.Region != "" {
		fmt.Printf("Region:      %s\n", d.ParsedFilename.Region)
	}
	if d.ParsedFilename.DiscNumber != 0 {
		fmt.Printf("Disc:        %d\n", d.ParsedFilename.DiscNumber)
	}
	if d.ParsedFilename.Serial != "" {
		fmt.Printf("Serial:      %s\n", d.ParsedFilename.Serial)
	}
	if d.ParsedFilename.Version != "" {
		fmt.Printf("Version:     %s\n", d.ParsedFilename.Version)
	}
	if d.AudioOnly {
		fmt.Printf("Audio only:  yes\n")
	}
	if d.TOC != nil {
		fmt.Printf("Tracks:      %d\n", d.TOC.TrackCount())
		fmt.Printf("Length:      %s\n", d.TOC.TotalTimeString())
		fmt.Printf("MusicBrainz: %s\n", d.TOC.MusicBrainzID())
		fmt.Printf("FreeDB:      %s\n", d.TOC.FreeDBID())
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/bgrewell/disc-kit"
	"github.com/bgrewell/disc-kit/pkg/filesystem"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/option"
	"github.com/bgrewell/usage"
	"golang.org/x/term"
)

// truncateString truncates the input string to the specified max length.
// If truncation occurs, it prepends "..." to indicate the string has been shortened.
func truncateString(input string, maxLength int) string {
	if len(input) <= maxLength {
		return input
	}
	if maxLength <= 3 {
		return input[len(input)-maxLength:]
	}
	return "..." + input[len(input)-(maxLength-3):]
}

// listRecursive prints every entry below dir, one per line with its size.
func listRecursive(fs filesystem.Filesystem, dir filesystem.FileEntry, width int) error {
	entries, err := fs.ListDirectory(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir.Path, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Printf("%12s  %s/\n", "", truncateString(entry.Path, width))
			if err := listRecursive(fs, entry, width); err != nil {
				return err
			}
			continue
		}
		fmt.Printf("%12d  %s\n", entry.Size, truncateString(entry.Path, width))
	}
	return nil
}

// readFile walks the path components from the root and dumps the file to
// stdout.
func readFile(fs filesystem.Filesystem, target string) error {
	entry := fs.Root()
	rest := target
	for rest != "" {
		var name string
		name, rest = splitPath(rest)
		if name == "" {
			continue
		}
		next, err := filesystem.Lookup(fs, entry, name)
		if err != nil {
			return fmt.Errorf("failed to resolve %q in %q: %w", name, target, err)
		}
		entry = next
	}
	if entry.IsDir() {
		return fmt.Errorf("%q is a directory", target)
	}
	data, err := fs.ReadFile(entry)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func splitPath(p string) (string, string) {
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			return p[:i], p[i+1:]
		}
	}
	return p, ""
}

func main() {

	u := usage.NewUsage()
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose output", "", nil)
	imagePath := u.AddArgument(1, "image-path", "Path to the disc image to open", "")
	filePath := u.AddArgument(2, "file-path", "Optional file within the image to write to stdout", "optional")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if imagePath == nil || *imagePath == "" {
		u.PrintError(fmt.Errorf("location of the disc image <image-path> must be provided"))
		os.Exit(1)
	}

	verbosity := logging.LEVEL_INFO
	if *verbose {
		verbosity = logging.LEVEL_DEBUG
	}
	logger := logging.NewSimpleLogger(os.Stderr, verbosity, true)

	d, err := disc.Identify(*imagePath, option.WithLogger(logger))
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	vol, err := disc.OpenFilesystem(d, option.WithLogger(logger))
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
	defer vol.Close()

	fs := vol.Filesystem()

	if filePath != nil && *filePath != "" {
		if err := readFile(fs, *filePath); err != nil {
			u.PrintError(err)
			os.Exit(1)
		}
		return
	}

	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width = 80
	}

	fmt.Printf("%s (%s)\n", fs.VolumeName(), d.Filesystem)
	if err := listRecursive(fs, fs.Root(), width-14); err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
}

package filesystem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryTypeString(t *testing.T) {
	require.Equal(t, "file", EntryTypeFile.String())
	require.Equal(t, "directory", EntryTypeDirectory.String())
}

func TestChildPath(t *testing.T) {
	root := FileEntry{Name: "/", Path: "/", Type: EntryTypeDirectory}
	require.Equal(t, "/SYSTEM", ChildPath(root, "SYSTEM"))

	sub := FileEntry{Name: "SYSTEM", Path: "/SYSTEM", Type: EntryTypeDirectory}
	require.Equal(t, "/SYSTEM/KERNEL.BIN", ChildPath(sub, "KERNEL.BIN"))
}

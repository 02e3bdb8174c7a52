package hive

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJailedPathAllowsSubtreePaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "corpora", "english"), 0o755))

	got, err := JailedPath(root, "corpora/english/1grams.csv")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "corpora", "english", "1grams.csv"), got)
}

func TestJailedPathRejectsAbsolute(t *testing.T) {
	root := t.TempDir()
	_, err := JailedPath(root, "/etc/passwd")
	require.Error(t, err)
}

func TestJailedPathRejectsEmpty(t *testing.T) {
	root := t.TempDir()
	_, err := JailedPath(root, "")
	require.Error(t, err)
}

func TestJailedPathRejectsDotDotEscape(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "corpora"), 0o755))

	_, err := JailedPath(root, "corpora/../../etc/passwd")
	require.Error(t, err)
	var escape ErrPathEscape
	require.ErrorAs(t, err, &escape)
}

func TestJailedPathRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("nope"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "corpora"), 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "corpora", "escape")))

	_, err := JailedPath(root, "corpora/escape/secret.txt")
	require.Error(t, err)
}

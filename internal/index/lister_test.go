package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPaths(t *testing.T) {
	paths, err := splitPaths([]byte("/home/u/a.txt\n/home/u/b.txt\n\n  \n/etc/hosts\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/u/a.txt", "/home/u/b.txt", "/etc/hosts"}, paths)
}

func TestSplitPathsEmptyOutput(t *testing.T) {
	paths, err := splitPaths(nil)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestSplitPathsRejectsInvalidUTF8(t *testing.T) {
	_, err := splitPaths([]byte{'/', 'a', 0xff, 0xfe, '\n'})
	require.Error(t, err)

	var rebuildErr *RebuildError
	assert.ErrorAs(t, err, &rebuildErr)
}

func TestFDListFailureCarriesStderr(t *testing.T) {
	// Stand-in that fails with a recognizable message on stderr.
	dir := t.TempDir()
	script := filepath.Join(dir, "fd")
	err := os.WriteFile(script, []byte("#!/bin/sh\necho 'no such directory' >&2\nexit 1\n"), 0o755)
	require.NoError(t, err)

	orig := fdCommand
	fdCommand = script
	defer func() { fdCommand = orig }()

	_, err = FDList(context.Background(), "/nowhere")
	require.Error(t, err)

	var rebuildErr *RebuildError
	require.ErrorAs(t, err, &rebuildErr)
	assert.Contains(t, rebuildErr.Reason, "fd command failed")
	assert.Contains(t, rebuildErr.Reason, "no such directory")
}

func TestFDListSuccessParsesStdout(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fd")
	err := os.WriteFile(script, []byte("#!/bin/sh\nprintf '/home/u/a.txt\\n/home/u/b.txt\\n'\n"), 0o755)
	require.NoError(t, err)

	orig := fdCommand
	fdCommand = script
	defer func() { fdCommand = orig }()

	paths, err := FDList(context.Background(), "/home/u")
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/u/a.txt", "/home/u/b.txt"}, paths)
}

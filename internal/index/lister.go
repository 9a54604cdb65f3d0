package index

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// RebuildError reports a failed index rebuild: the enumeration subprocess
// exited non-zero or produced undecodable output. The index keeps its
// previous entries when a rebuild fails.
type RebuildError struct {
	Reason string
}

func (e *RebuildError) Error() string {
	return e.Reason
}

// ListFunc enumerates regular files under root, one absolute path per
// element. The production implementation shells out; tests inject fakes.
type ListFunc func(ctx context.Context, root string) ([]string, error)

// fdCommand is a var so tests can point it at a stand-in binary.
var fdCommand = "fd"

// FDList enumerates files with fd, restricted to regular files rooted at
// root. Only the exit status and the newline-delimited stdout are consumed;
// stderr becomes the error detail on failure.
func FDList(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, fdCommand, ".", root, "--type", "file")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, &RebuildError{Reason: fmt.Sprintf("fd command failed: %s", detail)}
	}

	return splitPaths(stdout.Bytes())
}

// splitPaths parses newline-delimited subprocess output, dropping blank
// lines and rejecting non-UTF-8 text.
func splitPaths(out []byte) ([]string, error) {
	if !utf8.Valid(out) {
		return nil, &RebuildError{Reason: "fd output is not valid UTF-8"}
	}

	lines := strings.Split(string(out), "\n")
	paths := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		paths = append(paths, line)
	}
	return paths, nil
}

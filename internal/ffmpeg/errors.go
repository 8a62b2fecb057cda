package ffmpeg

import (
	"fmt"
	"strings"
)

// Op identifies which external conversion operation failed.
type Op string

const (
	OpStreamCopy    Op = "stream-copy"
	OpAudioReencode Op = "audio-reencode"
)

// CommandError is the low-level failure of a single ffmpeg invocation.
// Stderr holds the tail of the captured output for diagnostics.
type CommandError struct {
	Binary string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Binary, strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// EncodeError reports that a conversion invocation (stream copy or audio
// re-encode) failed. It is fatal to the run; retry policy belongs to the
// caller, never here.
type EncodeError struct {
	Op         Op
	OutputPath string
	Err        error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s to %q: %v", e.Op, e.OutputPath, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// tailLines returns the last n lines of s, for bounded error payloads.
func tailLines(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

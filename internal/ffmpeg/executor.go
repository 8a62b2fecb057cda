package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const stderrTail = 20

// Runner executes ffmpeg processes. The zero value is usable; Binary
// defaults to "ffmpeg" on PATH. Safe for concurrent use.
type Runner struct {
	Binary string
	Log    zerolog.Logger

	encOnce  sync.Once
	encoders map[string]bool
}

func (r *Runner) binary() string {
	if r.Binary == "" {
		return "ffmpeg"
	}
	return r.Binary
}

// run executes ffmpeg with args, capturing stderr for error reporting.
func (r *Runner) run(ctx context.Context, args []string) error {
	bin := r.binary()
	r.Log.Debug().Str("cmd", bin+" "+strings.Join(args, " ")).Msg("running")

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &CommandError{
			Binary: bin,
			Args:   args,
			Stderr: tailLines(stderr.String(), stderrTail),
			Err:    err,
		}
	}
	return nil
}

// CopyConvert runs the stream-copy conversion described by req.
func (r *Runner) CopyConvert(ctx context.Context, req CopyRequest) error {
	if err := r.run(ctx, CopyArgs(req)); err != nil {
		return &EncodeError{Op: OpStreamCopy, OutputPath: req.OutputPath, Err: err}
	}
	return nil
}

// ReencodeAudio runs the audio fallback conversion described by req.
func (r *Runner) ReencodeAudio(ctx context.Context, req ReencodeRequest) error {
	if err := r.run(ctx, ReencodeArgs(req)); err != nil {
		return &EncodeError{Op: OpAudioReencode, OutputPath: req.OutputPath, Err: err}
	}
	return nil
}

// DecodeStream decodes the stream at index in path to raw bytes in the
// given format, writing decoded output to w as it is produced. The
// caller owns classification of failures (see fingerprint.DecodeError).
func (r *Runner) DecodeStream(ctx context.Context, path string, index int, format string, win Window, w io.Writer) error {
	bin := r.binary()
	args := DecodeArgs(path, index, format, win)
	r.Log.Debug().Str("cmd", bin+" "+strings.Join(args, " ")).Msg("decoding stream")

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = w
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &CommandError{
			Binary: bin,
			Args:   args,
			Stderr: tailLines(stderr.String(), stderrTail),
			Err:    err,
		}
	}
	return nil
}

// StreamStderr executes ffmpeg and delivers each stderr line to fn as it
// arrives. Used for filter output that ffmpeg only reports on stderr
// (audio quality metrics).
func (r *Runner) StreamStderr(ctx context.Context, args []string, fn func(line string)) error {
	bin := r.binary()
	r.Log.Debug().Str("cmd", bin+" "+strings.Join(args, " ")).Msg("running")

	cmd := exec.CommandContext(ctx, bin, args...)
	pipe, err := cmd.StderrPipe()
	if err != nil {
		return &CommandError{Binary: bin, Args: args, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &CommandError{Binary: bin, Args: args, Err: err}
	}

	var tail []string
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		fn(line)
		tail = append(tail, line)
		if len(tail) > stderrTail {
			tail = tail[1:]
		}
	}

	if err := cmd.Wait(); err != nil {
		return &CommandError{
			Binary: bin,
			Args:   args,
			Stderr: strings.Join(tail, "\n"),
			Err:    err,
		}
	}
	return nil
}

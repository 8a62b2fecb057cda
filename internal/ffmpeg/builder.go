package ffmpeg

import (
	"fmt"
	"strconv"
)

// Window restricts an operation to a time slice of its input, in
// ffmpeg -ss/-to time syntax. The zero value means the whole stream.
// Every operation within one conversion run must use the same window,
// or verification would compare different slices of content.
type Window struct {
	Start string
	To    string
}

// IsZero reports whether the window covers the whole stream.
func (w Window) IsZero() bool { return w.Start == "" && w.To == "" }

// Args returns the input-side seek flags, empty for the zero window.
func (w Window) Args() []string {
	var args []string
	if w.Start != "" {
		args = append(args, "-ss", w.Start)
	}
	if w.To != "" {
		args = append(args, "-to", w.To)
	}
	return args
}

// CopyRequest describes a lossless stream-copy conversion into an MP4
// container, optionally restricted to a trim window.
type CopyRequest struct {
	InputPath  string
	OutputPath string
	Window     Window
}

// CopyArgs builds the argument slice for the stream-copy conversion.
// Video and audio are both copied bit-for-bit; corrupt TS packets are
// discarded on read and ADTS audio is converted to the MP4 ASC framing.
func CopyArgs(req CopyRequest) []string {
	args := make([]string, 0, 24)
	args = append(args,
		"-hide_banner", "-nostats", "-y",
		"-fflags", "+discardcorrupt",
	)
	args = append(args, req.Window.Args()...)
	args = append(args,
		"-i", req.InputPath,
		"-map", "0:v",
		"-map", "0:a",
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-f", "mp4",
		req.OutputPath,
	)
	return args
}

// AudioTarget selects one source audio stream for re-encoding.
// Ordinal is the kind-relative position (a:0, a:1, …), not the absolute
// container index. BitRate preserves the source rate when known.
type AudioTarget struct {
	Ordinal int
	BitRate int64
}

// ReencodeRequest describes the audio fallback conversion: video copied
// bit-for-bit from the stream-copy output, audio re-encoded fresh from
// the original source. Window must be the copy attempt's window so the
// re-encoded audio covers the same slice as the copied video.
type ReencodeRequest struct {
	SourcePath string // original file; audio is decoded and re-encoded from here
	CopiedPath string // stream-copy output; video is copied from here
	OutputPath string
	Codec      string // audio encoder, e.g. "libfdk_aac" or "aac"
	Audio      []AudioTarget
	Window     Window
}

// ReencodeArgs builds the argument slice for the audio re-encode. The
// copied file is input 0 (video source), the original is input 1 (audio
// source), so a broken audio copy never contaminates the candidate.
// The window applies to the source input only; the copied file already
// contains just the window.
func ReencodeArgs(req ReencodeRequest) []string {
	args := make([]string, 0, 24+6*len(req.Audio))
	args = append(args,
		"-hide_banner", "-nostats", "-y",
		"-i", req.CopiedPath,
	)
	args = append(args, req.Window.Args()...)
	args = append(args,
		"-i", req.SourcePath,
		"-map", "0:v",
		"-c:v", "copy",
	)
	for i, a := range req.Audio {
		args = append(args,
			"-map", fmt.Sprintf("1:a:%d", a.Ordinal),
			fmt.Sprintf("-c:a:%d", i), req.Codec,
		)
		if a.BitRate > 0 {
			args = append(args, fmt.Sprintf("-b:a:%d", i), strconv.FormatInt(a.BitRate, 10))
		}
	}
	args = append(args,
		"-bsf:a", "aac_adtstoasc",
		"-f", "mp4",
		req.OutputPath,
	)
	return args
}

// DecodeArgs builds the argument slice that decodes one stream to raw
// bytes on stdout. format is "s16le" for audio, "rawvideo" for video;
// the canonical raw form makes the fingerprint independent of container
// metadata. The window restricts decoding to the slice a trimmed
// conversion actually copied, so trimmed candidates verify against the
// matching slice of the source.
func DecodeArgs(path string, index int, format string, win Window) []string {
	args := []string{"-hide_banner", "-nostats"}
	args = append(args, win.Args()...)
	return append(args,
		"-i", path,
		"-map", fmt.Sprintf("0:%d", index),
		"-f", format,
		"-",
	)
}

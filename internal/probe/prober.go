package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ProbeError reports that the external tool could not read or parse a
// media file. It wraps the underlying exec or JSON failure.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %q: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Prober queries stream layout via ffprobe. The zero value is usable;
// Binary defaults to "ffprobe" on PATH.
type Prober struct {
	Binary string
	Log    zerolog.Logger
}

// Probe runs a single ffprobe JSON call against path and returns the
// parsed MediaFile. The query is read-only; the file is not modified.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaFile, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner",
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.Log.Debug().Str("path", path).Msg("probing")

	out, err := cmd.Output()
	if err != nil {
		return nil, &ProbeError{Path: path, Stderr: stderr.String(), Err: err}
	}

	mf, err := ParseJSON(out)
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}
	mf.Path = path
	return mf, nil
}

// ParseJSON converts raw ffprobe JSON output into a MediaFile.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*MediaFile, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildFile(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	Index      int               `json:"index"`
	CodecName  string            `json:"codec_name"`
	CodecType  string            `json:"codec_type"`
	Duration   string            `json:"duration"`
	Channels   int               `json:"channels"`
	SampleRate string            `json:"sample_rate"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// --- Conversion from wire types to domain types ---

func buildFile(raw *ffprobeOutput) *MediaFile {
	mf := &MediaFile{
		Format:   raw.Format.FormatName,
		Duration: parseFloat(raw.Format.Duration),
	}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		mf.Streams = append(mf.Streams, Stream{
			Index:      s.Index,
			Kind:       kindOf(s.CodecType),
			Codec:      s.CodecName,
			Duration:   parseFloat(s.Duration),
			Channels:   s.Channels,
			SampleRate: parseInt(s.SampleRate),
			BitRate:    parseInt64(s.BitRate),
			Language:   s.Tags["language"],
		})
	}
	return mf
}

func kindOf(codecType string) StreamKind {
	switch codecType {
	case "video":
		return KindVideo
	case "audio":
		return KindAudio
	default:
		return KindOther
	}
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	n, _ := strconv.Atoi(s)
	return n
}

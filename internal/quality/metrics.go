package quality

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/verimux/verimux/internal/ffmpeg"
)

// AudioMetrics holds the measured quality of a re-encoded audio stream
// relative to its source. Nil fields mean the filter did not report a
// value for that metric.
type AudioMetrics struct {
	APSNR *float64 // average peak signal-to-noise ratio, dB
	ASDR  *float64 // average signal-to-distortion ratio, dB
}

// StderrStreamer executes a command and streams its stderr line by line.
// Implemented by ffmpeg.Runner; faked in tests. ffmpeg reports filter
// measurements only on stderr, so this is the one place the pipeline
// parses process output rather than an explicit result format.
type StderrStreamer interface {
	StreamStderr(ctx context.Context, args []string, fn func(line string)) error
}

// MetricsArgs builds the ffmpeg invocation that compares one reference
// audio stream against its re-encoded counterpart through the apsnr and
// asdr filters, discarding the media output. The window trims the
// reference input so a trimmed output is measured against the slice it
// was produced from.
func MetricsArgs(refPath string, refIndex int, degPath string, degIndex int, win ffmpeg.Window) []string {
	fc := fmt.Sprintf("[0:%d][1:%d]apsnr;[0:%d][1:%d]asdr", refIndex, degIndex, refIndex, degIndex)
	args := []string{"-hide_banner", "-nostats"}
	args = append(args, win.Args()...)
	args = append(args,
		"-i", refPath,
		"-i", degPath,
		"-filter_complex", fc,
		"-f", "null", "-",
	)
	return args
}

// MeasureAudio runs the metric filters and parses their per-channel
// summary lines. The measurement is informational; callers must not let
// a failure here change the conversion verdict.
func MeasureAudio(ctx context.Context, s StderrStreamer, refPath string, refIndex int, degPath string, degIndex int, win ffmpeg.Window) (AudioMetrics, error) {
	p := &metricsParser{}
	args := MetricsArgs(refPath, refIndex, degPath, degIndex, win)
	if err := s.StreamStderr(ctx, args, p.feed); err != nil {
		return AudioMetrics{}, err
	}
	return p.metrics, nil
}

// Filter summary lines look like:
//
//	[Parsed_apsnr_0 @ 0x...] PSNR ch0: 34.76 dB
//	[Parsed_asdr_1 @ 0x...] SDR ch0: inf dB
const dbValue = `([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?|inf|-inf|-?nan)`

var (
	reAPSNR = regexp.MustCompile(`PSNR ch\d+: ` + dbValue + ` dB`)
	reASDR  = regexp.MustCompile(`SDR ch\d+: ` + dbValue + ` dB`)
)

// metricsParser keeps the first reported channel value per metric.
type metricsParser struct {
	metrics AudioMetrics
}

func (p *metricsParser) feed(line string) {
	if p.metrics.APSNR == nil && strings.Contains(line, "Parsed_apsnr") {
		if v, ok := parseDB(reAPSNR, line); ok {
			p.metrics.APSNR = &v
		}
	}
	if p.metrics.ASDR == nil && strings.Contains(line, "Parsed_asdr") {
		if v, ok := parseDB(reASDR, line); ok {
			p.metrics.ASDR = &v
		}
	}
}

func parseDB(re *regexp.Regexp, line string) (float64, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	s := m[1]
	if s == "-nan" {
		s = "nan"
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

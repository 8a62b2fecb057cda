// Package convert drives the verification-driven conversion of a single
// file: stream-copy first, verify every stream's decoded content, fall
// back to re-encoding audio when (and only when) audio verification
// fails, re-verify, and report a final quality verdict.
//
// Integrity mismatches are data that drive the fallback transition;
// only infrastructure failures (probe, decode, encode) abort a run.
package convert

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/verimux/verimux/internal/ffmpeg"
	"github.com/verimux/verimux/internal/integrity"
	"github.com/verimux/verimux/internal/probe"
	"github.com/verimux/verimux/internal/quality"
)

// Prober resolves a media file's stream layout.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.MediaFile, error)
}

// Tool runs the external conversion operations. Implemented by
// ffmpeg.Runner; faked in tests so the state machine can be exercised
// without any real process execution.
type Tool interface {
	CopyConvert(ctx context.Context, req ffmpeg.CopyRequest) error
	ReencodeAudio(ctx context.Context, req ffmpeg.ReencodeRequest) error
	AudioEncoder(ctx context.Context, preference string) string
}

// Checker compares source and output stream content.
type Checker interface {
	Check(ctx context.Context, source, output *probe.MediaFile, window ffmpeg.Window) ([]integrity.Verdict, error)
}

// Orchestrator owns the attempt sequence for one conversion run.
// Runs share no mutable state, so one Orchestrator may serve concurrent
// runs as long as destination paths do not collide.
type Orchestrator struct {
	Prober  Prober
	Tool    Tool
	Checker Checker

	// Metrics, when set, measures APSNR/ASDR for re-encoded audio
	// streams. Measurement is informational and never changes the
	// verdict.
	Metrics quality.StderrStreamer

	// AudioEncoder is the configured encoder preference ("auto" lets
	// the tool pick).
	AudioEncoder string

	Log zerolog.Logger
}

// Request identifies one conversion run. Start/To optionally trim the
// output window.
type Request struct {
	SourcePath string
	DestPath   string
	Start      string
	To         string
}

// Convert runs the state machine for req. Exactly one of the results is
// non-nil: a report (pass or fail — including content mismatches, which
// are recorded, not raised) or a fatal infrastructure error that aborted
// the run. The destination file exists only when the report passes.
func (o *Orchestrator) Convert(ctx context.Context, req Request) (*quality.Report, error) {
	log := o.Log.With().Str("source", req.SourcePath).Logger()

	source, err := o.Prober.Probe(ctx, req.SourcePath)
	if err != nil {
		return nil, fatal(StateInit, err)
	}
	if len(source.VideoStreams()) == 0 {
		return nil, fatal(StateInit, fmt.Errorf("source %q has no video stream", req.SourcePath))
	}
	if len(source.AudioStreams()) == 0 {
		return nil, fatal(StateInit, fmt.Errorf("source %q has no audio stream", req.SourcePath))
	}

	// Trimmed runs verify against the same window the candidate was
	// cut from; the window follows the source through every decode.
	win := ffmpeg.Window{Start: req.Start, To: req.To}

	var temps artifacts
	defer temps.cleanup()

	// INIT → COPIED: lossless stream copy, strictly preferred.
	copyCandidate := tempPath(req.DestPath, "copy")
	temps.add(copyCandidate)
	log.Info().Msg("stream-copying to mp4")
	if err := o.Tool.CopyConvert(ctx, ffmpeg.CopyRequest{
		InputPath:  req.SourcePath,
		OutputPath: copyCandidate,
		Window:     win,
	}); err != nil {
		return nil, fatal(StateInit, err)
	}

	// COPIED → VERIFIED_COPY.
	attempt, copied, err := o.verify(ctx, source, copyCandidate, quality.StrategyStreamCopy, win)
	if err != nil {
		return nil, fatal(StateCopied, err)
	}
	attempts := []quality.Attempt{*attempt}

	if attempt.AllMatch() {
		// DONE_OK on the first attempt: no re-encode is considered.
		if err := temps.promote(copyCandidate, req.DestPath); err != nil {
			return nil, fatal(StateVerifiedCopy, err)
		}
		attempts[0].OutputPath = req.DestPath
		report := quality.Evaluate(attempts)
		if win.IsZero() {
			noteDurationSkew(log, report, source, copied)
		}
		log.Info().Msg("all streams verified, stream copy kept")
		return report, nil
	}

	if attempt.VideoFailed() {
		// A broken video copy is structural: re-encoding audio cannot
		// fix it and video is never re-encoded. DONE_FAIL immediately.
		report := quality.Evaluate(attempts)
		logFailures(log, report)
		return report, nil
	}

	// VERIFIED_COPY → REENCODING: audio-only failure; keep the copied
	// video, re-encode audio fresh from the source. Exactly one
	// re-encode attempt is made — the encoder is deterministic, so
	// retrying it cannot change the outcome.
	log.Warn().Msg("audio verification failed, re-encoding audio")
	reencCandidate := tempPath(req.DestPath, "reencode")
	temps.add(reencCandidate)
	if err := o.Tool.ReencodeAudio(ctx, ffmpeg.ReencodeRequest{
		SourcePath: req.SourcePath,
		CopiedPath: copyCandidate,
		OutputPath: reencCandidate,
		Codec:      o.Tool.AudioEncoder(ctx, o.AudioEncoder),
		Audio:      audioTargets(source),
		Window:     win,
	}); err != nil {
		return nil, fatal(StateReencoding, err)
	}

	// REENCODING → VERIFIED_REENCODE.
	attempt, reencoded, err := o.verify(ctx, source, reencCandidate, quality.StrategyAudioReencode, win)
	if err != nil {
		return nil, fatal(StateVerifiedReencode, err)
	}
	attempts = append(attempts, *attempt)

	report := quality.Evaluate(attempts)
	if !report.Pass {
		logFailures(log, report)
		return report, nil
	}

	if err := temps.promote(reencCandidate, req.DestPath); err != nil {
		return nil, fatal(StateVerifiedReencode, err)
	}
	attempts[len(attempts)-1].OutputPath = req.DestPath
	report = quality.Evaluate(attempts)
	if win.IsZero() {
		noteDurationSkew(log, report, source, reencoded)
	}

	o.measure(ctx, log, report, source, reencoded, req.DestPath, win)
	log.Info().Msg("all streams verified after audio re-encode")
	return report, nil
}

// verify probes a candidate and compares it against the source.
func (o *Orchestrator) verify(ctx context.Context, source *probe.MediaFile, candidate string, strategy quality.Strategy, win ffmpeg.Window) (*quality.Attempt, *probe.MediaFile, error) {
	output, err := o.Prober.Probe(ctx, candidate)
	if err != nil {
		return nil, nil, err
	}
	verdicts, err := o.Checker.Check(ctx, source, output, win)
	if err != nil {
		return nil, nil, err
	}
	return &quality.Attempt{Strategy: strategy, OutputPath: candidate, Verdicts: verdicts}, output, nil
}

// measure records APSNR/ASDR for each re-encoded audio stream. Failures
// are logged and swallowed: metrics never change the verdict.
func (o *Orchestrator) measure(ctx context.Context, log zerolog.Logger, report *quality.Report, source, reencoded *probe.MediaFile, destPath string, win ffmpeg.Window) {
	if o.Metrics == nil {
		return
	}

	srcAudio := source.AudioStreams()
	outAudio := reencoded.AudioStreams()
	for ordinal, src := range srcAudio {
		if ordinal >= len(outAudio) {
			break
		}
		m, err := quality.MeasureAudio(ctx, o.Metrics, source.Path, src.Index, destPath, outAudio[ordinal].Index, win)
		if err != nil {
			log.Warn().Err(err).Int("ordinal", ordinal).Msg("audio quality measurement failed")
			continue
		}
		if m.APSNR == nil && m.ASDR == nil {
			continue
		}
		if report.Metrics == nil {
			report.Metrics = make(map[int]quality.AudioMetrics)
		}
		report.Metrics[ordinal] = m

		ev := log.Info().Int("ordinal", ordinal)
		if m.APSNR != nil {
			ev = ev.Float64("apsnr_db", *m.APSNR)
		}
		if m.ASDR != nil {
			ev = ev.Float64("asdr_db", *m.ASDR)
		}
		ev.Msg("re-encoded audio quality")
	}
}

// audioTargets selects every source audio stream for re-encoding,
// preserving its bit rate when the container reports one.
func audioTargets(source *probe.MediaFile) []ffmpeg.AudioTarget {
	streams := source.AudioStreams()
	targets := make([]ffmpeg.AudioTarget, len(streams))
	for ordinal, s := range streams {
		targets[ordinal] = ffmpeg.AudioTarget{Ordinal: ordinal, BitRate: s.BitRate}
	}
	return targets
}

// Containers legitimately disagree on duration by a frame or two;
// anything past this is worth surfacing.
const durationSkewTolerance = 1.0 // seconds

// noteDurationSkew records the source/output duration difference on the
// report. Informational: fingerprints already proved the content, so
// skew here indicates container timestamp trouble, not data loss.
func noteDurationSkew(log zerolog.Logger, report *quality.Report, source, output *probe.MediaFile) {
	report.DurationSkew = quality.DurationSkew(source.Duration, output.Duration)
	if report.DurationSkew > durationSkewTolerance {
		log.Warn().
			Float64("source_s", source.Duration).
			Float64("output_s", output.Duration).
			Msg("container duration skew")
	}
}

func logFailures(log zerolog.Logger, report *quality.Report) {
	for _, f := range report.Failures {
		ev := log.Error().
			Str("kind", string(f.Kind)).
			Int("ordinal", f.Ordinal).
			Str("state", f.State.String())
		if f.Structural {
			ev = ev.Bool("structural", true)
		}
		ev.Msg("stream failed verification")
	}
}

// fatal wraps an infrastructure error with the state it terminated the
// run in. These errors surface to the caller unretried.
func fatal(s State, err error) error {
	return fmt.Errorf("conversion aborted in state %s: %w", s, err)
}

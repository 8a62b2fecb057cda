// Package integrity compares the decoded content of source streams
// against their counterparts in a converted output. Verdicts are data:
// a mismatch is recorded, never raised as an error. Only infrastructure
// failures (a stream that cannot be decoded at all) surface as errors.
package integrity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/verimux/verimux/internal/ffmpeg"
	"github.com/verimux/verimux/internal/fingerprint"
	"github.com/verimux/verimux/internal/probe"
)

// State is the verdict for one matched (source, output) stream pair.
type State int

const (
	Match    State = iota // decoded content is bit-identical
	Mismatch              // both streams decode, content differs
	Missing               // output lacks a corresponding stream
)

func (s State) String() string {
	switch s {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	case Missing:
		return "missing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Verdict records the comparison outcome for one source stream.
// Ordinal is the kind-relative position; OutputIndex is -1 when the
// output has no corresponding stream.
type Verdict struct {
	Kind        probe.StreamKind
	Ordinal     int
	SourceIndex int
	OutputIndex int
	State       State
	Detail      string
}

// Hasher computes stream fingerprints. Implemented by fingerprint.Hasher;
// faked in tests.
type Hasher interface {
	Hash(ctx context.Context, path string, index int, kind probe.StreamKind, win ffmpeg.Window) (fingerprint.Fingerprint, error)
}

// Checker verifies that every video and audio stream of a source file is
// preserved in an output file.
type Checker struct {
	Hasher Hasher
	Log    zerolog.Logger
}

// Check pairs streams by (kind, kind-relative ordinal) — not by raw
// container index, since conversion may reorder absolute indices while
// preserving kind-relative order — and fingerprints each pair. Source
// streams without an output counterpart yield Missing; extra output
// streams beyond the source's count are ignored, because the check
// verifies that source content is preserved, not that nothing was added.
//
// The window names the slice of the source the output was produced
// from: it is applied when decoding the source side only, so a trimmed
// output is compared against the matching portion of its source.
func (c *Checker) Check(ctx context.Context, source, output *probe.MediaFile, window ffmpeg.Window) ([]Verdict, error) {
	var verdicts []Verdict
	for _, kind := range []probe.StreamKind{probe.KindVideo, probe.KindAudio} {
		vs, err := c.checkKind(ctx, source, output, kind, window)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, vs...)
	}
	return verdicts, nil
}

func (c *Checker) checkKind(ctx context.Context, source, output *probe.MediaFile, kind probe.StreamKind, window ffmpeg.Window) ([]Verdict, error) {
	srcStreams := source.StreamsOfKind(kind)
	outStreams := output.StreamsOfKind(kind)

	verdicts := make([]Verdict, 0, len(srcStreams))
	for ordinal, src := range srcStreams {
		v := Verdict{
			Kind:        kind,
			Ordinal:     ordinal,
			SourceIndex: src.Index,
			OutputIndex: -1,
		}

		if ordinal >= len(outStreams) {
			v.State = Missing
			v.Detail = fmt.Sprintf("output has no %s stream at ordinal %d", kind, ordinal)
			c.Log.Warn().Str("kind", string(kind)).Int("ordinal", ordinal).Msg("stream missing from output")
			verdicts = append(verdicts, v)
			continue
		}
		out := outStreams[ordinal]
		v.OutputIndex = out.Index

		srcFP, err := c.Hasher.Hash(ctx, source.Path, src.Index, kind, window)
		if err != nil {
			return nil, err
		}
		outFP, err := c.Hasher.Hash(ctx, output.Path, out.Index, kind, ffmpeg.Window{})
		if err != nil {
			return nil, err
		}

		if srcFP.Equal(outFP) {
			v.State = Match
		} else {
			v.State = Mismatch
			v.Detail = fmt.Sprintf("digest %s != %s", srcFP.Hex(), outFP.Hex())
			c.Log.Warn().
				Str("kind", string(kind)).
				Int("ordinal", ordinal).
				Str("source", srcFP.Hex()).
				Str("output", outFP.Hex()).
				Msg("stream content mismatch")
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

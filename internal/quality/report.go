// Package quality aggregates stream verdicts into the final conversion
// report, and measures audio quality metrics for re-encoded streams.
// Evaluation is pure: it performs no I/O and never mutates its inputs.
package quality

import (
	"github.com/verimux/verimux/internal/integrity"
	"github.com/verimux/verimux/internal/probe"
)

// Strategy identifies how a conversion attempt produced its output.
type Strategy string

const (
	StrategyStreamCopy    Strategy = "stream-copy"
	StrategyAudioReencode Strategy = "audio-reencode"
)

// Attempt records one conversion attempt: the strategy used, where its
// candidate output was written, and the integrity verdicts for it.
// Attempts are append-only within a run; the orchestrator owns the
// sequence.
type Attempt struct {
	Strategy   Strategy
	OutputPath string
	Verdicts   []integrity.Verdict
}

// AllMatch reports whether every verdict in the attempt is a match.
func (a *Attempt) AllMatch() bool {
	for _, v := range a.Verdicts {
		if v.State != integrity.Match {
			return false
		}
	}
	return len(a.Verdicts) > 0
}

// VideoFailed reports whether any video stream mismatched or is missing.
// A broken video copy is structural: no fallback can repair it.
func (a *Attempt) VideoFailed() bool {
	for _, v := range a.Verdicts {
		if v.Kind == probe.KindVideo && v.State != integrity.Match {
			return true
		}
	}
	return false
}

// FailedVerdicts returns the verdicts that are not matches.
func (a *Attempt) FailedVerdicts() []integrity.Verdict {
	var failed []integrity.Verdict
	for _, v := range a.Verdicts {
		if v.State != integrity.Match {
			failed = append(failed, v)
		}
	}
	return failed
}

// StreamFailure describes one failing stream in the final attempt, for
// user-facing diagnostics. Structural marks failures no fallback exists
// for (video under stream copy).
type StreamFailure struct {
	Kind       probe.StreamKind
	Ordinal    int
	State      integrity.State
	Structural bool
	Detail     string
}

// Report is the immutable final result of a conversion run. A run either
// passes — every source stream verified bit-identical in the promoted
// output — or fails with the failing streams listed. Metrics carries
// informational audio quality measurements keyed by source audio
// ordinal; it never influences Pass, and neither does DurationSkew.
type Report struct {
	Pass     bool
	Attempts []Attempt
	Failures []StreamFailure
	Metrics  map[int]AudioMetrics

	// DurationSkew is the absolute container duration difference in
	// seconds between source and the final candidate. Noticeable skew
	// alongside matching fingerprints points at container timestamp
	// trouble rather than content loss.
	DurationSkew float64
}

// DurationSkew returns the absolute difference between two container
// durations in seconds.
func DurationSkew(source, output float64) float64 {
	d := source - output
	if d < 0 {
		d = -d
	}
	return d
}

// Final returns the attempt whose verdicts determined the verdict.
func (r *Report) Final() *Attempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}

// Evaluate aggregates the attempt sequence into a Report. The last
// attempt decides: pass iff all of its verdicts are matches. Any
// mismatch or missing stream fails the run, with the specific streams
// recorded.
func Evaluate(attempts []Attempt) *Report {
	r := &Report{Attempts: attempts}
	final := r.Final()
	if final == nil {
		return r
	}

	r.Pass = final.AllMatch()
	for _, v := range final.FailedVerdicts() {
		r.Failures = append(r.Failures, StreamFailure{
			Kind:       v.Kind,
			Ordinal:    v.Ordinal,
			State:      v.State,
			Structural: v.Kind == probe.KindVideo,
			Detail:     v.Detail,
		})
	}
	return r
}

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/verimux/verimux/internal/config"
	"github.com/verimux/verimux/internal/convert"
	"github.com/verimux/verimux/internal/display"
	"github.com/verimux/verimux/internal/quality"
)

// Files smaller than this are treated as corrupt recorder droppings and
// skipped rather than failed.
const minFileSize = 1000

// Converter runs the verification-driven conversion of one file.
// Implemented by convert.Orchestrator.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) (*quality.Report, error)
}

// Runner drives a batch run: discovery, the worker pool, optional watch
// mode, and the final summary.
type Runner struct {
	Cfg       *config.Config
	Converter Converter
	Log       zerolog.Logger

	resolver *CollisionResolver
	stats    RunStats
}

// Run processes the configured input and returns aggregate stats. In
// watch mode it keeps converting new recordings until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) *RunStats {
	r.resolver = NewCollisionResolver()

	inputRoot := r.Cfg.Input
	if fi, err := os.Stat(inputRoot); err == nil && !fi.IsDir() {
		inputRoot = filepath.Dir(inputRoot)
	}

	files, err := Discover(r.Cfg.Input)
	if err != nil {
		r.Log.Error().Err(err).Msg("file discovery failed")
		return &r.stats
	}
	r.stats.Total = len(files)
	r.Log.Info().Int("files", len(files)).Int("workers", r.Cfg.Workers).Msg("starting batch")

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < r.Cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				if ctx.Err() != nil {
					continue
				}
				r.processFile(ctx, src, inputRoot)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
		if r.Cfg.Watch {
			if err := watch(ctx, r.Cfg.Input, r.Log, jobs, &r.stats); err != nil {
				r.Log.Error().Err(err).Msg("watch failed")
			}
		}
	}()

	wg.Wait()
	if ctx.Err() != nil {
		r.Log.Warn().Msg("interrupted")
	}
	r.logSummary()
	return &r.stats
}

// processFile converts one recording and records the outcome. A failed
// verification and an aborted run are distinct outcomes: the first
// means the file converted but the output could not be proven faithful,
// the second means a tool broke before any verdict existed.
func (r *Runner) processFile(ctx context.Context, src, inputRoot string) {
	log := r.Log.With().Str("file", filepath.Base(src)).Logger()

	fi, err := os.Stat(src)
	if err != nil {
		log.Error().Err(err).Msg("file not found")
		r.stats.update(func(s *RunStats) { s.Errored++ })
		return
	}
	if fi.Size() < minFileSize {
		log.Warn().Int64("size", fi.Size()).Msg("file too small, skipping")
		r.stats.update(func(s *RunStats) { s.Skipped++ })
		return
	}

	dest := r.resolver.Resolve(src, OutputPath(src, inputRoot, r.Cfg.OutputDir))

	if r.Cfg.SkipExisting {
		if _, err := os.Stat(dest); err == nil {
			log.Info().Str("output", filepath.Base(dest)).Msg("skip, output exists")
			r.stats.update(func(s *RunStats) { s.Skipped++ })
			return
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		log.Error().Err(err).Msg("cannot create output directory")
		r.stats.update(func(s *RunStats) { s.Errored++ })
		return
	}

	start := time.Now()
	report, err := r.Converter.Convert(ctx, convert.Request{
		SourcePath: src,
		DestPath:   dest,
		Start:      r.Cfg.Start,
		To:         r.Cfg.To,
	})
	if err != nil {
		log.Error().Err(err).Msg("conversion aborted")
		r.stats.update(func(s *RunStats) { s.Errored++ })
		return
	}

	if !report.Pass {
		log.Error().Int("failed_streams", len(report.Failures)).Msg("verification failed, no output kept")
		r.stats.update(func(s *RunStats) { s.Failed++ })
		return
	}

	var outSize int64
	if outInfo, err := os.Stat(dest); err == nil {
		outSize = outInfo.Size()
	}
	reencoded := report.Final().Strategy == quality.StrategyAudioReencode

	r.stats.update(func(s *RunStats) {
		s.TotalInputBytes += fi.Size()
		s.TotalOutputBytes += outSize
		if reencoded {
			s.Reencoded++
		} else {
			s.Converted++
		}
	})

	log.Info().
		Str("output", filepath.Base(dest)).
		Str("strategy", string(report.Final().Strategy)).
		Dur("elapsed", time.Since(start).Round(time.Second)).
		Str("size", display.FormatBytes(outSize)).
		Msg("converted and verified")
}

func (r *Runner) logSummary() {
	s := &r.stats
	ev := r.Log.Info().
		Int("converted", s.Converted+s.Reencoded).
		Int("reencoded", s.Reencoded).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("errored", s.Errored)
	if saved := s.SpaceSaved(); s.TotalInputBytes > 0 {
		ev = ev.Str("space_saved", display.FormatBytesWithSign(saved))
	}
	ev.Msg("batch done")
}

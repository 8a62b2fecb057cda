package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimux/verimux/internal/config"
	"github.com/verimux/verimux/internal/convert"
	"github.com/verimux/verimux/internal/integrity"
	"github.com/verimux/verimux/internal/probe"
	"github.com/verimux/verimux/internal/quality"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, minFileSize), 0o644))
	return path
}

// --- Discover ---

func TestDiscoverFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "rec1.ts")
	touch(t, dir, "rec2.m2ts")
	touch(t, dir, "rec3.mts")
	touch(t, dir, "movie.mp4")
	touch(t, dir, "notes.txt")
	touch(t, dir, ".hidden.ts")
	touch(t, dir, "show.mp4.copy.tmp")

	files, err := Discover(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"rec1.ts", "rec2.m2ts", "rec3.mts"}, names)
}

func TestDiscoverRecursiveAndSorted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	touch(t, filepath.Join(dir, "b"), "late.ts")
	touch(t, filepath.Join(dir, "a"), "early.ts")

	files, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "early.ts", filepath.Base(files[0]))
	assert.Equal(t, "late.ts", filepath.Base(files[1]))
}

func TestDiscoverSingleFile(t *testing.T) {
	dir := t.TempDir()
	// An explicitly named file is accepted regardless of extension.
	path := touch(t, dir, "capture.raw")

	files, err := Discover(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

// --- OutputPath ---

func TestOutputPathPreservesSubdirectories(t *testing.T) {
	got := OutputPath("/rec/shows/news/ep1.ts", "/rec", "/out")
	assert.Equal(t, filepath.FromSlash("/out/shows/news/ep1.mp4"), got)
}

func TestOutputPathFlattensOutsideRoot(t *testing.T) {
	got := OutputPath("/elsewhere/ep1.ts", "/rec", "/out")
	assert.Equal(t, filepath.FromSlash("/out/ep1.mp4"), got)
}

// --- CollisionResolver ---

func TestCollisionResolver(t *testing.T) {
	cr := NewCollisionResolver()

	first := cr.Resolve("/in/show.ts", "/out/show.mp4")
	assert.Equal(t, "/out/show.mp4", first)

	// Same input asking again keeps its claim.
	again := cr.Resolve("/in/show.ts", "/out/show.mp4")
	assert.Equal(t, "/out/show.mp4", again)

	second := cr.Resolve("/in/show.m2ts", "/out/show.mp4")
	assert.Equal(t, filepath.Join("/out", "show - dup1.mp4"), second)

	third := cr.Resolve("/in/other/show.ts", "/out/show.mp4")
	assert.Equal(t, filepath.Join("/out", "show - dup2.mp4"), third)
}

// --- Runner ---

// fakeConverter scripts per-source outcomes and writes the destination
// file on pass, like the real orchestrator does.
type fakeConverter struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool // sources whose verification fails
	err   map[string]error
	reenc map[string]bool // sources that pass via audio re-encode
}

func (f *fakeConverter) Convert(_ context.Context, req convert.Request) (*quality.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.SourcePath)
	f.mu.Unlock()

	if err := f.err[req.SourcePath]; err != nil {
		return nil, err
	}

	verdict := integrity.Verdict{Kind: probe.KindAudio, State: integrity.Match}
	strategy := quality.StrategyStreamCopy
	if f.reenc[req.SourcePath] {
		strategy = quality.StrategyAudioReencode
	}
	if f.fail[req.SourcePath] {
		verdict.State = integrity.Mismatch
		return quality.Evaluate([]quality.Attempt{{Strategy: strategy, Verdicts: []integrity.Verdict{verdict}}}), nil
	}

	if err := os.WriteFile(req.DestPath, []byte("mp4"), 0o644); err != nil {
		return nil, err
	}
	return quality.Evaluate([]quality.Attempt{{
		Strategy:   strategy,
		OutputPath: req.DestPath,
		Verdicts:   []integrity.Verdict{verdict},
	}}), nil
}

func newRunner(t *testing.T, fc *fakeConverter, mutate func(*config.Config)) (*Runner, string, string) {
	t.Helper()
	in := t.TempDir()
	out := t.TempDir()
	cfg := config.Default()
	cfg.Input = in
	cfg.OutputDir = out
	cfg.Workers = 2
	if mutate != nil {
		mutate(&cfg)
	}
	return &Runner{Cfg: &cfg, Converter: fc, Log: zerolog.Nop()}, in, out
}

func TestRunnerConvertsBatch(t *testing.T) {
	fc := &fakeConverter{reenc: map[string]bool{}}
	r, in, out := newRunner(t, fc, nil)
	touch(t, in, "a.ts")
	b := touch(t, in, "b.ts")
	fc.reenc[b] = true

	stats := r.Run(context.Background())

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 1, stats.Reencoded)
	assert.True(t, stats.OK())
	assert.FileExists(t, filepath.Join(out, "a.mp4"))
	assert.FileExists(t, filepath.Join(out, "b.mp4"))
}

func TestRunnerCountsFailuresAndErrors(t *testing.T) {
	fc := &fakeConverter{fail: map[string]bool{}, err: map[string]error{}}
	r, in, _ := newRunner(t, fc, nil)
	touch(t, in, "good.ts")
	bad := touch(t, in, "bad.ts")
	broken := touch(t, in, "broken.ts")
	fc.fail[bad] = true
	fc.err[broken] = errors.New("ffprobe exploded")

	stats := r.Run(context.Background())

	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Errored)
	assert.False(t, stats.OK())
}

func TestRunnerSkipsExistingAndTinyFiles(t *testing.T) {
	fc := &fakeConverter{}
	r, in, out := newRunner(t, fc, nil)
	touch(t, in, "done.ts")
	require.NoError(t, os.WriteFile(filepath.Join(out, "done.mp4"), []byte("x"), 0o644))

	tiny := filepath.Join(in, "tiny.ts")
	require.NoError(t, os.WriteFile(tiny, []byte("x"), 0o644))

	stats := r.Run(context.Background())

	assert.Equal(t, 2, stats.Skipped)
	assert.Empty(t, fc.calls)
}

func TestRunnerForceReconverts(t *testing.T) {
	fc := &fakeConverter{}
	r, in, out := newRunner(t, fc, func(c *config.Config) { c.SkipExisting = false })
	touch(t, in, "done.ts")
	require.NoError(t, os.WriteFile(filepath.Join(out, "done.mp4"), []byte("x"), 0o644))

	stats := r.Run(context.Background())

	assert.Equal(t, 1, stats.Converted)
	assert.Len(t, fc.calls, 1)
}

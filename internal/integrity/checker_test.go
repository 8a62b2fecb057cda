package integrity

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimux/verimux/internal/ffmpeg"
	"github.com/verimux/verimux/internal/fingerprint"
	"github.com/verimux/verimux/internal/probe"
)

// fakeHasher maps (path, index) to a content label; equal labels hash equal.
type fakeHasher struct {
	content map[string]string // "path:index" -> content label
	failOn  string            // "path:index" that returns a DecodeError
	windows map[string]ffmpeg.Window
}

func (h *fakeHasher) Hash(_ context.Context, path string, index int, kind probe.StreamKind, win ffmpeg.Window) (fingerprint.Fingerprint, error) {
	k := fmt.Sprintf("%s:%d", path, index)
	if h.windows == nil {
		h.windows = make(map[string]ffmpeg.Window)
	}
	h.windows[k] = win
	if k == h.failOn {
		return fingerprint.Fingerprint{}, &fingerprint.DecodeError{
			Path: path, Index: index, Kind: kind, Err: errors.New("exit status 1"),
		}
	}
	label, ok := h.content[k]
	if !ok {
		label = k // unknown streams hash to themselves
	}
	return fingerprint.Fingerprint{
		Kind:   kind,
		Index:  index,
		Digest: md5.Sum([]byte(label)),
	}, nil
}

func mediaFile(path string, kinds ...probe.StreamKind) *probe.MediaFile {
	mf := &probe.MediaFile{Path: path, Format: "mpegts"}
	for i, k := range kinds {
		mf.Streams = append(mf.Streams, probe.Stream{Index: i, Kind: k})
	}
	return mf
}

func TestCheckAllMatch(t *testing.T) {
	src := mediaFile("src.ts", probe.KindVideo, probe.KindAudio)
	out := mediaFile("out.mp4", probe.KindVideo, probe.KindAudio)
	c := &Checker{Hasher: &fakeHasher{content: map[string]string{
		"src.ts:0": "v", "out.mp4:0": "v",
		"src.ts:1": "a", "out.mp4:1": "a",
	}}}

	verdicts, err := c.Check(context.Background(), src, out, ffmpeg.Window{})
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	for _, v := range verdicts {
		assert.Equal(t, Match, v.State)
	}
}

func TestCheckAudioMismatch(t *testing.T) {
	src := mediaFile("src.ts", probe.KindVideo, probe.KindAudio)
	out := mediaFile("out.mp4", probe.KindVideo, probe.KindAudio)
	c := &Checker{Hasher: &fakeHasher{content: map[string]string{
		"src.ts:0": "v", "out.mp4:0": "v",
		"src.ts:1": "a", "out.mp4:1": "a-drifted",
	}}}

	verdicts, err := c.Check(context.Background(), src, out, ffmpeg.Window{})
	require.NoError(t, err)
	require.Len(t, verdicts, 2)

	assert.Equal(t, probe.KindVideo, verdicts[0].Kind)
	assert.Equal(t, Match, verdicts[0].State)

	assert.Equal(t, probe.KindAudio, verdicts[1].Kind)
	assert.Equal(t, Mismatch, verdicts[1].State)
	assert.Contains(t, verdicts[1].Detail, "digest")
}

// Pairing is by kind-relative ordinal, not raw container index: an output
// reordered to [audio, video] must still compare video with video.
func TestCheckPairsByKindOrdinal(t *testing.T) {
	src := mediaFile("src.ts", probe.KindVideo, probe.KindAudio)
	out := mediaFile("out.mp4", probe.KindAudio, probe.KindVideo)
	c := &Checker{Hasher: &fakeHasher{content: map[string]string{
		"src.ts:0": "v", "out.mp4:1": "v",
		"src.ts:1": "a", "out.mp4:0": "a",
	}}}

	verdicts, err := c.Check(context.Background(), src, out, ffmpeg.Window{})
	require.NoError(t, err)
	require.Len(t, verdicts, 2)

	assert.Equal(t, probe.KindVideo, verdicts[0].Kind)
	assert.Equal(t, Match, verdicts[0].State)
	assert.Equal(t, 0, verdicts[0].SourceIndex)
	assert.Equal(t, 1, verdicts[0].OutputIndex)

	assert.Equal(t, probe.KindAudio, verdicts[1].Kind)
	assert.Equal(t, Match, verdicts[1].State)
}

func TestCheckMissingStream(t *testing.T) {
	src := mediaFile("src.ts", probe.KindVideo, probe.KindAudio, probe.KindAudio)
	out := mediaFile("out.mp4", probe.KindVideo, probe.KindAudio)
	c := &Checker{Hasher: &fakeHasher{content: map[string]string{
		"src.ts:0": "v", "out.mp4:0": "v",
		"src.ts:1": "a0", "out.mp4:1": "a0",
	}}}

	verdicts, err := c.Check(context.Background(), src, out, ffmpeg.Window{})
	require.NoError(t, err)
	require.Len(t, verdicts, 3)

	missing := verdicts[2]
	assert.Equal(t, probe.KindAudio, missing.Kind)
	assert.Equal(t, 1, missing.Ordinal)
	assert.Equal(t, Missing, missing.State)
	assert.Equal(t, -1, missing.OutputIndex)
}

// Extra output streams beyond the source's count are ignored, and non-AV
// streams (captions, data) never participate.
func TestCheckIgnoresExtrasAndOthers(t *testing.T) {
	src := mediaFile("src.ts", probe.KindVideo, probe.KindAudio, probe.KindOther)
	out := mediaFile("out.mp4", probe.KindVideo, probe.KindAudio, probe.KindAudio)
	c := &Checker{Hasher: &fakeHasher{content: map[string]string{
		"src.ts:0": "v", "out.mp4:0": "v",
		"src.ts:1": "a", "out.mp4:1": "a",
	}}}

	verdicts, err := c.Check(context.Background(), src, out, ffmpeg.Window{})
	require.NoError(t, err)
	assert.Len(t, verdicts, 2)
}

// A trimmed output holds only the window, so the window trims the
// source decode and the output decodes whole. Both sides then cover the
// same slice and a correct trimmed copy verifies as a match.
func TestCheckWindowTrimsSourceSideOnly(t *testing.T) {
	src := mediaFile("src.ts", probe.KindVideo, probe.KindAudio)
	out := mediaFile("out.mp4", probe.KindVideo, probe.KindAudio)
	hasher := &fakeHasher{content: map[string]string{
		"src.ts:0": "v", "out.mp4:0": "v",
		"src.ts:1": "a", "out.mp4:1": "a",
	}}
	c := &Checker{Hasher: hasher}

	win := ffmpeg.Window{Start: "00:00:05", To: "00:30:00"}
	verdicts, err := c.Check(context.Background(), src, out, win)
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	for _, v := range verdicts {
		assert.Equal(t, Match, v.State)
	}

	assert.Equal(t, win, hasher.windows["src.ts:0"])
	assert.Equal(t, win, hasher.windows["src.ts:1"])
	assert.Equal(t, ffmpeg.Window{}, hasher.windows["out.mp4:0"])
	assert.Equal(t, ffmpeg.Window{}, hasher.windows["out.mp4:1"])
}

func TestCheckDecodeFailureIsFatal(t *testing.T) {
	src := mediaFile("src.ts", probe.KindVideo)
	out := mediaFile("out.mp4", probe.KindVideo)
	c := &Checker{Hasher: &fakeHasher{failOn: "out.mp4:0"}}

	_, err := c.Check(context.Background(), src, out, ffmpeg.Window{})
	var de *fingerprint.DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "match", Match.String())
	assert.Equal(t, "mismatch", Mismatch.String())
	assert.Equal(t, "missing", Missing.String())
}

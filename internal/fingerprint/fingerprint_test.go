package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimux/verimux/internal/ffmpeg"
	"github.com/verimux/verimux/internal/probe"
)

// fakeDecoder returns canned raw bytes per (path, index) and counts calls.
type fakeDecoder struct {
	content map[string][]byte // "path:index" -> decoded bytes
	err     error
	calls   int
	formats []string
	windows []ffmpeg.Window
}

func key(path string, index int) string {
	return fmt.Sprintf("%s:%d", path, index)
}

func (d *fakeDecoder) DecodeStream(_ context.Context, path string, index int, format string, win ffmpeg.Window, w io.Writer) error {
	d.calls++
	d.formats = append(d.formats, format)
	d.windows = append(d.windows, win)
	if d.err != nil {
		return d.err
	}
	_, err := w.Write(d.content[key(path, index)])
	return err
}

func TestHashDeterministic(t *testing.T) {
	dec := &fakeDecoder{content: map[string][]byte{
		key("a.ts", 0):  []byte("raw video frames"),
		key("b.mp4", 0): []byte("raw video frames"),
	}}
	h := &Hasher{Decoder: dec}

	fp1, err := h.Hash(context.Background(), "a.ts", 0, probe.KindVideo, ffmpeg.Window{})
	require.NoError(t, err)
	fp2, err := h.Hash(context.Background(), "a.ts", 0, probe.KindVideo, ffmpeg.Window{})
	require.NoError(t, err)
	assert.True(t, fp1.Equal(fp2), "same decoded content must yield identical digests")

	// Identical decoded content in a different container also matches:
	// the fingerprint sees decoded bytes only.
	fp3, err := h.Hash(context.Background(), "b.mp4", 0, probe.KindVideo, ffmpeg.Window{})
	require.NoError(t, err)
	assert.True(t, fp1.Equal(fp3))
}

func TestHashDistinguishesContent(t *testing.T) {
	dec := &fakeDecoder{content: map[string][]byte{
		key("a.ts", 1): []byte("pcm samples"),
		key("a.ts", 2): []byte("pcm samples, shifted"),
	}}
	h := &Hasher{Decoder: dec}

	fp1, err := h.Hash(context.Background(), "a.ts", 1, probe.KindAudio, ffmpeg.Window{})
	require.NoError(t, err)
	fp2, err := h.Hash(context.Background(), "a.ts", 2, probe.KindAudio, ffmpeg.Window{})
	require.NoError(t, err)
	assert.False(t, fp1.Equal(fp2))
}

func TestHashCanonicalFormats(t *testing.T) {
	dec := &fakeDecoder{content: map[string][]byte{}}
	h := &Hasher{Decoder: dec}

	_, err := h.Hash(context.Background(), "a.ts", 0, probe.KindVideo, ffmpeg.Window{})
	require.NoError(t, err)
	_, err = h.Hash(context.Background(), "a.ts", 1, probe.KindAudio, ffmpeg.Window{})
	require.NoError(t, err)

	assert.Equal(t, []string{"rawvideo", "s16le"}, dec.formats)
}

func TestHashUnsupportedKind(t *testing.T) {
	h := &Hasher{Decoder: &fakeDecoder{}}

	_, err := h.Hash(context.Background(), "a.ts", 3, probe.KindOther, ffmpeg.Window{})
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 3, de.Index)
	assert.Equal(t, 0, h.Decoder.(*fakeDecoder).calls, "decoder must not run for unsupported kinds")
}

func TestHashDecodeFailure(t *testing.T) {
	cause := errors.New("exit status 1")
	h := &Hasher{Decoder: &fakeDecoder{err: cause}}

	_, err := h.Hash(context.Background(), "a.ts", 1, probe.KindAudio, ffmpeg.Window{})
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, cause)
}

func TestHashCache(t *testing.T) {
	// The cache key embeds (path, mtime, size), so a real file is needed.
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.ts")
	require.NoError(t, os.WriteFile(path, []byte("ts payload"), 0o644))

	cache, err := openInMemory()
	require.NoError(t, err)
	defer cache.Close()

	dec := &fakeDecoder{content: map[string][]byte{
		key(path, 1): []byte("pcm samples"),
	}}
	h := &Hasher{Decoder: dec, Cache: cache}

	fp1, err := h.Hash(context.Background(), path, 1, probe.KindAudio, ffmpeg.Window{})
	require.NoError(t, err)
	assert.Equal(t, 1, dec.calls)

	// Second hash is served from the cache without touching the decoder.
	fp2, err := h.Hash(context.Background(), path, 1, probe.KindAudio, ffmpeg.Window{})
	require.NoError(t, err)
	assert.Equal(t, 1, dec.calls)
	assert.True(t, fp1.Equal(fp2))

	// Modifying the file invalidates the entry (size change).
	require.NoError(t, os.WriteFile(path, []byte("ts payload, regrown"), 0o644))
	_, err = h.Hash(context.Background(), path, 1, probe.KindAudio, ffmpeg.Window{})
	require.NoError(t, err)
	assert.Equal(t, 2, dec.calls)
}

func TestHashCacheScopedByWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.ts")
	require.NoError(t, os.WriteFile(path, []byte("ts payload"), 0o644))

	cache, err := openInMemory()
	require.NoError(t, err)
	defer cache.Close()

	dec := &fakeDecoder{content: map[string][]byte{
		key(path, 1): []byte("pcm samples"),
	}}
	h := &Hasher{Decoder: dec, Cache: cache}

	win := ffmpeg.Window{Start: "00:00:05", To: "00:30:00"}
	_, err = h.Hash(context.Background(), path, 1, probe.KindAudio, ffmpeg.Window{})
	require.NoError(t, err)
	_, err = h.Hash(context.Background(), path, 1, probe.KindAudio, win)
	require.NoError(t, err)

	// A windowed hash never reuses the whole-stream entry, and the
	// decoder sees the window it slices by.
	assert.Equal(t, 2, dec.calls)
	assert.Equal(t, []ffmpeg.Window{{}, win}, dec.windows)

	// Each keyed slice is cached independently.
	_, err = h.Hash(context.Background(), path, 1, probe.KindAudio, win)
	require.NoError(t, err)
	assert.Equal(t, 2, dec.calls)
}

func TestCacheNilSafe(t *testing.T) {
	var c *Cache
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.NoError(t, c.Put("k", [DigestSize]byte{}))
	assert.NoError(t, c.Close())
}

func TestFingerprintHex(t *testing.T) {
	fp := Fingerprint{Digest: [DigestSize]byte{0xde, 0xad, 0xbe, 0xef}}
	assert.Equal(t, "deadbeef"+"000000000000000000000000", fp.Hex())
}

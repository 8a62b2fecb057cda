// Package fingerprint computes content fingerprints for media streams.
// A stream is decoded to a canonical raw representation (PCM samples for
// audio, raw frames for video) and the decoded bytes are hashed, so that
// re-muxing or container metadata changes never alter the result while
// any change to decoded content always does.
package fingerprint

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/verimux/verimux/internal/ffmpeg"
	"github.com/verimux/verimux/internal/probe"
)

// DigestSize is the fixed fingerprint digest length in bytes.
const DigestSize = md5.Size

// Canonical raw decode formats per stream kind.
const (
	formatAudio = "s16le"
	formatVideo = "rawvideo"
)

// Fingerprint is a fixed-size digest of a stream's decoded content,
// tagged with the kind and container index it was computed from.
type Fingerprint struct {
	Kind   probe.StreamKind
	Index  int
	Digest [DigestSize]byte
}

// Equal reports whether the digest bytes match exactly. By construction
// equal digests mean bit-identical decoded content, not merely identical
// compressed bytes.
func (f Fingerprint) Equal(o Fingerprint) bool { return f.Digest == o.Digest }

// Hex returns the digest in hexadecimal form for diagnostics.
func (f Fingerprint) Hex() string { return hex.EncodeToString(f.Digest[:]) }

// DecodeError reports that a stream could not be decoded for hashing.
type DecodeError struct {
	Path  string
	Index int
	Kind  probe.StreamKind
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s stream %d of %q: %v", e.Kind, e.Index, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder decodes one stream of a file to raw bytes, optionally
// restricted to a time window. Implemented by ffmpeg.Runner; faked in
// tests.
type Decoder interface {
	DecodeStream(ctx context.Context, path string, index int, format string, win ffmpeg.Window, w io.Writer) error
}

// Hasher computes stream fingerprints, optionally consulting a persistent
// cache keyed by file identity (path, mtime, size) plus stream identity.
// Identical decoded content always yields an identical digest.
type Hasher struct {
	Decoder Decoder
	Cache   *Cache
	Log     zerolog.Logger
}

// Hash decodes the identified stream and returns its fingerprint. A
// non-zero window fingerprints only that slice of the stream, so a
// trimmed conversion's source side hashes the slice the output was
// produced from. Only video and audio streams can be fingerprinted.
func (h *Hasher) Hash(ctx context.Context, path string, index int, kind probe.StreamKind, win ffmpeg.Window) (Fingerprint, error) {
	var format string
	switch kind {
	case probe.KindAudio:
		format = formatAudio
	case probe.KindVideo:
		format = formatVideo
	default:
		return Fingerprint{}, &DecodeError{
			Path: path, Index: index, Kind: kind,
			Err: fmt.Errorf("unsupported stream kind %q", kind),
		}
	}

	key, haveKey := h.cacheKey(path, index, kind, win)
	if haveKey {
		if digest, ok := h.Cache.Get(key); ok {
			h.Log.Debug().Str("path", path).Int("stream", index).Msg("fingerprint cache hit")
			return Fingerprint{Kind: kind, Index: index, Digest: digest}, nil
		}
	}

	sum := md5.New()
	if err := h.Decoder.DecodeStream(ctx, path, index, format, win, sum); err != nil {
		return Fingerprint{}, &DecodeError{Path: path, Index: index, Kind: kind, Err: err}
	}

	var digest [DigestSize]byte
	copy(digest[:], sum.Sum(nil))

	if haveKey {
		if err := h.Cache.Put(key, digest); err != nil {
			h.Log.Warn().Err(err).Msg("fingerprint cache write failed")
		}
	}

	return Fingerprint{Kind: kind, Index: index, Digest: digest}, nil
}

// cacheKey derives the cache key from the file's resolved path, mtime,
// and size, so any modification to the file invalidates its entries.
// The window is part of the key: the same stream hashed over different
// slices yields different digests. Returns false when no cache is
// configured or the file cannot be identified; hashing then proceeds
// uncached.
func (h *Hasher) cacheKey(path string, index int, kind probe.StreamKind, win ffmpeg.Window) (string, bool) {
	if h.Cache == nil {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", false
	}
	key := fmt.Sprintf("%s|%d|%d|%d|%s|%s|%s",
		abs, fi.ModTime().UnixNano(), fi.Size(), index, kind, win.Start, win.To)
	return key, true
}

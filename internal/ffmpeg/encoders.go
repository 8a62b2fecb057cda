package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// preferredAACEncoder is used when available; the built-in encoder is the
// fallback.
const (
	preferredAACEncoder = "libfdk_aac"
	fallbackAACEncoder  = "aac"
)

// HasEncoder reports whether the local ffmpeg build provides the named
// encoder. The encoder list is queried once per Runner and cached.
func (r *Runner) HasEncoder(ctx context.Context, name string) bool {
	r.encOnce.Do(func() {
		r.encoders = loadEncoders(ctx, r.binary())
	})
	return r.encoders[name]
}

// AudioEncoder resolves the audio encoder to use for re-encoding.
// An explicit non-"auto" preference wins; otherwise libfdk_aac is used
// when present, with the built-in AAC encoder as fallback.
func (r *Runner) AudioEncoder(ctx context.Context, preference string) string {
	if preference != "" && preference != "auto" {
		return preference
	}
	if r.HasEncoder(ctx, preferredAACEncoder) {
		return preferredAACEncoder
	}
	r.Log.Warn().Msgf("%s not available, falling back to the built-in AAC encoder", preferredAACEncoder)
	return fallbackAACEncoder
}

func loadEncoders(ctx context.Context, bin string) map[string]bool {
	out, err := exec.CommandContext(ctx, bin, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil
	}
	return parseEncoderList(out)
}

// parseEncoderList extracts encoder names from `ffmpeg -encoders` output.
// Lines look like " A....D aac  AAC (Advanced Audio Coding)"; everything
// before the "------" separator is header text.
func parseEncoderList(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	body := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !body {
			if strings.HasPrefix(line, "---") {
				body = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

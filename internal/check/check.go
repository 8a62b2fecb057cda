// Package check provides the `check` subcommand diagnostics and the
// pre-pipeline dependency validation for ffmpeg and ffprobe.
package check

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Sentinel errors returned by Deps when a required tool is missing.
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound = errors.New("ffprobe not found on PATH")
)

// Deps verifies that ffmpeg and ffprobe are on PATH before a run
// starts. Encoder availability is not checked here: stream copy needs
// no encoder, and the audio fallback picks its encoder at the moment
// it is needed.
func Deps() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return ErrFfmpegNotFound
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return ErrFfprobeNotFound
	}
	return nil
}

// Run executes the interactive `check` flow: tool versions, AAC encoder
// inventory, and quality-filter availability. Informational only, it
// never stops on failure.
func Run(ctx context.Context, log zerolog.Logger) {
	checkVersion(ctx, log, "ffmpeg")
	checkVersion(ctx, log, "ffprobe")
	checkAACEncoders(ctx, log)
	checkMetricFilters(ctx, log)
}

// checkVersion verifies the binary is on PATH and logs its version line.
func checkVersion(ctx context.Context, log zerolog.Logger, binary string) {
	if _, err := exec.LookPath(binary); err != nil {
		log.Error().Str("binary", binary).Msg("not found on PATH")
		return
	}
	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		log.Warn().Err(err).Str("binary", binary).Msg("found but -version failed")
		return
	}
	log.Info().Str("binary", binary).Str("version", firstLine(string(out))).Msg("found")
}

// checkAACEncoders lists the AAC encoders ffmpeg was built with and
// runs a short test encode with the preferred one.
func checkAACEncoders(ctx context.Context, log zerolog.Logger) {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		log.Warn().Err(err).Msg("could not list encoders")
		return
	}

	var available []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		if name == "aac" || name == "libfdk_aac" {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		log.Error().Msg("no AAC encoder available, audio re-encode fallback will fail")
		return
	}
	log.Info().Strs("encoders", available).Msg("AAC encoders")

	preferred := available[0]
	for _, name := range available {
		if name == "libfdk_aac" {
			preferred = name
		}
	}
	if runSilent(ctx, "ffmpeg",
		"-hide_banner", "-nostdin",
		"-f", "lavfi", "-i", "sine=frequency=1000:duration=0.1",
		"-c:a", preferred, "-f", "null", "-",
	) {
		log.Info().Str("encoder", preferred).Msg("test encode ok")
	} else {
		log.Error().Str("encoder", preferred).Msg("test encode failed")
	}
}

// checkMetricFilters reports whether the apsnr/asdr filters exist; they
// arrived in ffmpeg 6.1, and without them audio quality measurement is
// silently unavailable.
func checkMetricFilters(ctx context.Context, log zerolog.Logger) {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-filters").Output()
	if err != nil {
		log.Warn().Err(err).Msg("could not list filters")
		return
	}
	for _, name := range []string{"apsnr", "asdr"} {
		if strings.Contains(string(out), " "+name+" ") {
			log.Info().Str("filter", name).Msg("quality filter available")
		} else {
			log.Warn().Str("filter", name).Msg("quality filter missing, measurement disabled")
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx > 0 {
		s = s[:idx]
	}
	return s
}

// runSilent runs a command and reports whether it exited with status 0.
func runSilent(ctx context.Context, name string, args ...string) bool {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

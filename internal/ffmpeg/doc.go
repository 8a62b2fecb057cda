// Package ffmpeg builds and executes ffmpeg commands for the three external
// operations the pipeline depends on: stream-copy conversion, audio-only
// re-encode, and decoding a stream to raw bytes for fingerprinting.
//
// Argument construction (builder.go) is kept separate from process
// execution (executor.go) so command shapes are testable without a real
// ffmpeg binary.
package ffmpeg

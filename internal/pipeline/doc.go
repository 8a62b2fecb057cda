// Package pipeline orchestrates batch conversion: transport stream
// discovery, output path resolution, the per-file worker pool, watch
// mode, and the batch summary.
package pipeline

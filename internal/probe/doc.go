// Package probe provides ffprobe-based media inspection and typed result
// structures. A single JSON call per file returns the full stream layout,
// which downstream packages treat as an immutable snapshot of the file.
package probe

package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// OutputPath maps a source file to its destination: the source's path
// relative to inputRoot, re-rooted under outputDir with an .mp4
// extension. A source outside inputRoot (or inputRoot itself, when the
// input is a single file) lands flat in outputDir.
func OutputPath(srcPath, inputRoot, outputDir string) string {
	rel, err := filepath.Rel(inputRoot, srcPath)
	if err != nil || strings.HasPrefix(rel, "..") || rel == "." {
		rel = filepath.Base(srcPath)
	}
	ext := filepath.Ext(rel)
	return filepath.Join(outputDir, strings.TrimSuffix(rel, ext)+".mp4")
}

// CollisionResolver tracks output paths claimed by input files and
// resolves duplicates by appending " - dupN" suffixes. Two recordings
// named show.ts and show.m2ts would otherwise race for show.mp4.
// All methods are goroutine-safe.
type CollisionResolver struct {
	mu       sync.Mutex
	owners   map[string]string // output path → input path that owns it
	counters map[string]int    // base output path → next dup counter
}

// NewCollisionResolver creates a ready-to-use resolver.
func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

// Resolve returns the final output path for input, handling collisions.
// If requestedOutput is unclaimed (or already owned by input), it is
// returned as-is. Otherwise a " - dupN" variant is generated.
func (cr *CollisionResolver) Resolve(input, requestedOutput string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	owner, exists := cr.owners[requestedOutput]
	if !exists || owner == input {
		cr.owners[requestedOutput] = input
		return requestedOutput
	}

	dir := filepath.Dir(requestedOutput)
	base := filepath.Base(requestedOutput)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	counter := cr.counters[requestedOutput]
	if counter == 0 {
		counter = 1
	}

	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s - dup%d%s", stem, counter, ext))
		cOwner, cExists := cr.owners[candidate]
		if !cExists || cOwner == input {
			cr.counters[requestedOutput] = counter + 1
			cr.owners[candidate] = input
			return candidate
		}
		counter++
	}
}

package convert

import "os"

// tempPath derives a per-attempt candidate path from the destination.
// Candidates live next to the destination so promotion is a same-device
// rename, and the destination itself is never written directly — a crash
// mid-run can only leave temp artifacts behind, never a half-written
// final file.
func tempPath(dest, attempt string) string {
	return dest + "." + attempt + ".tmp"
}

// artifacts tracks candidate files that must not survive the run.
// The promoted winner is forgotten before cleanup.
type artifacts struct {
	paths []string
}

func (a *artifacts) add(path string) {
	a.paths = append(a.paths, path)
}

func (a *artifacts) forget(path string) {
	for i, p := range a.paths {
		if p == path {
			a.paths = append(a.paths[:i], a.paths[i+1:]...)
			return
		}
	}
}

// cleanup removes every remaining artifact. Missing files are fine;
// cleanup runs on both success and failure paths.
func (a *artifacts) cleanup() {
	for _, p := range a.paths {
		os.Remove(p)
	}
	a.paths = nil
}

// promote moves the winning candidate to the destination and drops it
// from the cleanup set.
func (a *artifacts) promote(candidate, dest string) error {
	if err := os.Rename(candidate, dest); err != nil {
		return err
	}
	a.forget(candidate)
	return nil
}

package indexer

import "os"

// isReadable reports whether path can be opened for reading, standing in
// for the original's os.access(path, os.R_OK) check (spec.md §4.3).
// Unlike the original, this is always called with the fully-joined path
// — see REDESIGN FLAG (b) in the package doc.
func isReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

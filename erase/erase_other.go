//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package erase

import "os"

// removeWhileOpen is false where an open file cannot be deleted. The path is
// re-checked before the handle is closed, leaving a short window in which it
// could be swapped.
const removeWhileOpen = false

// openExclusive opens path for writing. No advisory lock is taken.
func openExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, &EraseError{Path: path, Op: "open", Err: err}
	}

	return f, nil
}

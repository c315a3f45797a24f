//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package erase

import (
	"os"

	"golang.org/x/sys/unix"
)

// removeWhileOpen keeps the lock held until the file is unlinked.
const removeWhileOpen = true

// openExclusive opens path for writing without following a final symlink
// and takes a non-blocking exclusive flock on it. O_NONBLOCK keeps a FIFO
// swapped in after the Lstat from blocking the open.
func openExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NOFOLLOW|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, &EraseError{Path: path, Op: "open", Err: err}
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()

		return nil, &EraseError{Path: path, Op: "lock", Err: err}
	}

	return f, nil
}

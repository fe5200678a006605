package vchan

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Listen prepares the server rendezvous point at path. A stale socket file
// left by an earlier listener is removed first. The returned descriptor is
// non-blocking, close-on-exec and accepts a single pending connection; the
// caller owns it.
func Listen(path string) (int, error) {
	if err := validatePath(path); err != nil {
		return -1, err
	}

	if err := unix.Unlink(path); err != nil && !errors.Is(err, unix.ENOENT) {
		return -1, fmt.Errorf("unlink %s: %w", path, err)
	}

	fd, err := newSocket(true)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind %s: %w", path, err)
	}

	if err := unix.Listen(fd, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listen %s: %w", path, err)
	}

	return fd, nil
}

package vchan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/sys/unix"

	"avaneesh/vchan-go/pkg/internal/logger"
)

// Connect connects to the server rendezvous point at path, retrying every
// DefaultConnectDelay for as long as the endpoint is missing or refusing
// connections. There is no retry limit; use ConnectContext to bound it.
// The returned descriptor is non-blocking.
func Connect(path string) (int, error) {
	return ConnectContext(context.Background(), path)
}

// ConnectContext is Connect with cancellation. It returns ctx.Err() if ctx
// ends while waiting between attempts.
func ConnectContext(ctx context.Context, path string) (int, error) {
	return connect(ctx, path, DefaultConnectDelay, defaultSysCalls(), logger.GetDefault())
}

func connect(ctx context.Context, path string, delay time.Duration, sys *sysCalls, log logger.Logger) (int, error) {
	if err := validatePath(path); err != nil {
		return -1, err
	}

	fd, err := newSocket(false)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}

	sa := &unix.SockaddrUnix{Name: path}
	b := newRetryPolicy(delay)
	for {
		err := sys.connect(fd, sa)
		if err == nil || errors.Is(err, unix.EISCONN) {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if !errors.Is(err, unix.ECONNREFUSED) && !errors.Is(err, unix.ENOENT) {
			unix.Close(fd)
			return -1, fmt.Errorf("connect %s: %w", path, err)
		}

		d := b.Duration()
		log.Debug("connect %s: %v (attempt %d), retrying in %s", path, err, int(b.Attempt()), d)

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			unix.Close(fd)
			return -1, ctx.Err()
		case <-timer.C:
		}
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("set non-blocking: %w", err)
	}

	log.Debug("connected to %s after %d retries", path, int(b.Attempt()))
	return fd, nil
}

// newRetryPolicy returns the connect retry schedule: a fixed delay between
// attempts with no jitter and no limit. Attempt() counts the failures seen.
func newRetryPolicy(delay time.Duration) *backoff.Backoff {
	return &backoff.Backoff{Min: delay, Max: delay, Factor: 1, Jitter: false}
}

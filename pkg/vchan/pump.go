package vchan

import (
	"errors"
	"fmt"

	"github.com/jpillora/sizestr"
	"golang.org/x/sys/unix"
)

// pump moves bytes between the connected socket and the two rings until the
// peer closes, the connection resets, or shutdown is requested and the write
// ring is empty. It blocks in poll without a timeout; only socket readiness
// or a byte on the user event pipe wakes it.
//
// A returned error is fatal to the worker. Peer-initiated termination is not
// an error.
func (v *Vchan) pump(fd int) error {
	fds := []unix.PollFd{
		{Fd: int32(fd)},
		{Fd: int32(v.userEvent.r), Events: unix.POLLIN},
	}

	var sent, received int64
	defer func() {
		v.logger.Debug("pump finished (sent %s received %s)", sizestr.ToString(sent), sizestr.ToString(received))
	}()

	done := false
	for !done {
		v.mu.Lock()
		fds[0].Events = 0
		if v.readRing.Available() > 0 {
			fds[0].Events |= unix.POLLIN
		}
		if v.writeRing.Filled() > 0 {
			fds[0].Events |= unix.POLLOUT
		}
		v.mu.Unlock()

		fds[0].Revents = 0
		fds[1].Revents = 0
		if _, err := v.sys.poll(fds, -1); err != nil && !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("poll: %w", err)
		}

		v.mu.Lock()
		v.stats.iterations.Add(1)
		shutdown := v.shutdown

		if fds[1].Revents&unix.POLLIN != 0 {
			if _, err := v.userEvent.drain(v.sys.read); err != nil {
				v.logger.Warn("drain user event pipe: %v", err)
			}
			v.stats.wakeups.Add(1)
		}

		progress := false

		// Socket -> read ring. Hangup and error are reported as readable so
		// the read observes end of stream or the pending error.
		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			if buf := v.readRing.Tail(); len(buf) > 0 {
				n, err := v.sys.read(fd, buf)
				switch {
				case errors.Is(err, unix.EAGAIN):
					n = 0
				case errors.Is(err, unix.ECONNRESET):
					n = 0
					done = true
				case err != nil:
					v.mu.Unlock()
					return fmt.Errorf("read from socket: %w", err)
				case n == 0:
					done = true
				default:
					progress = true
				}
				v.readRing.AdvanceTail(n)
				received += int64(n)
				v.stats.bytesReceived.Add(uint64(n))
			}
		}

		// Write ring -> socket.
		if fds[0].Revents&(unix.POLLOUT|unix.POLLERR) != 0 {
			if buf := v.writeRing.Head(); len(buf) > 0 {
				n, err := v.sys.write(fd, buf)
				switch {
				case errors.Is(err, unix.EAGAIN):
					n = 0
				case errors.Is(err, unix.EPIPE):
					n = 0
					done = true
				case err != nil:
					v.mu.Unlock()
					return fmt.Errorf("write to socket: %w", err)
				case n > 0:
					progress = true
				}
				v.writeRing.AdvanceHead(n)
				sent += int64(n)
				v.stats.bytesSent.Add(uint64(n))
			}
		}

		if progress {
			if err := v.socketEvent.notify(v.sys.write); err != nil {
				v.mu.Unlock()
				return fmt.Errorf("notify: %w", err)
			}
			v.stats.notifications.Add(1)
		}

		// Flush everything buffered for the peer before stopping.
		if shutdown && v.writeRing.Filled() == 0 {
			done = true
		}

		v.mu.Unlock()
	}

	return nil
}

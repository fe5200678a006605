package vchan

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// runServer waits for exactly one peer on the listening socket, then pumps
// data over the accepted connection until it ends. The wait is bounded by
// ConnectDelay so a shutdown request is seen even if nobody ever connects.
func (v *Vchan) runServer() error {
	v.mu.Lock()
	listenFD := v.socketFD
	v.mu.Unlock()

	timeout := int(v.config.ConnectDelay / time.Millisecond)
	fds := []unix.PollFd{{Fd: int32(listenFD), Events: unix.POLLIN}}
	for {
		fds[0].Revents = 0
		if _, err := v.sys.poll(fds, timeout); err != nil && !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("poll listener: %w", err)
		}
		if v.shutdownRequested() {
			v.logger.Debug("shutdown requested before a peer connected")
			return nil
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			break
		}
	}

	var fd int
	for {
		var err error
		fd, err = v.sys.accept(listenFD)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("accept: %w", err)
		}
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set non-blocking: %w", err)
	}

	// The accepted connection replaces the listener.
	v.mu.Lock()
	v.socketFD = fd
	v.mu.Unlock()
	if err := unix.Close(listenFD); err != nil {
		v.logger.Warn("close listener: %v", err)
	}

	v.changeState(StateConnected)
	err := v.pump(fd)
	if err != nil {
		v.fail(err)
	}
	v.changeState(StateDisconnected)

	v.mu.Lock()
	v.socketFD = -1
	v.mu.Unlock()
	if cerr := unix.Close(fd); cerr != nil {
		v.logger.Warn("close socket: %v", cerr)
	}
	return nil
}

func (v *Vchan) shutdownRequested() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shutdown
}

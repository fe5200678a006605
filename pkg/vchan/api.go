package vchan

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// eventWaiter lets several API callers block on the socket event pipe at
// once. One caller polls the pipe while the rest sleep on cond; every
// completed poll bumps gen and wakes them all, so no notification is lost
// to a caller that was not the one draining.
type eventWaiter struct {
	mu      sync.Mutex
	cond    *sync.Cond
	polling bool
	closed  bool // the socket event pipe is closed or about to be
	gen     uint64
}

func newEventWaiter() *eventWaiter {
	w := &eventWaiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *eventWaiter) generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen
}

// waitEvent blocks until at least one poll of the socket event pipe has
// completed after generation seen was observed.
func (v *Vchan) waitEvent(seen uint64) error {
	w := v.waiter
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.gen == seen {
		if w.closed {
			return ErrClosed
		}
		if w.polling {
			w.cond.Wait()
			continue
		}

		w.polling = true
		w.mu.Unlock()
		err := v.pollSocketEvent()
		w.mu.Lock()
		w.polling = false
		w.gen++
		w.cond.Broadcast()

		if err != nil {
			return err
		}
	}
	return nil
}

// pollSocketEvent waits for one notification. Shutdown writes its byte after
// setting the flag, so a poll that starts before the flag is set still wakes.
func (v *Vchan) pollSocketEvent() error {
	if v.shutdownRequested() {
		return ErrClosed
	}
	fds := []unix.PollFd{{Fd: int32(v.socketEvent.r), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll socket event: %w", err)
		}
		break
	}
	if fds[0].Revents&unix.POLLNVAL != 0 {
		return ErrClosed
	}
	_, err := v.socketEvent.drain(unix.Read)
	return err
}

// closeWait stops new polls of the socket event pipe and waits for the one
// in progress to return. The caller must have called Shutdown, which wakes
// that poll.
func (w *eventWaiter) closeWait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for w.polling {
		w.cond.Wait()
	}
	w.cond.Broadcast()
}

// wakeWorker tells the pump that a ring changed on the API side
func (v *Vchan) wakeWorker() {
	if err := v.userEvent.notify(unix.Write); err != nil {
		v.logger.Error("wake worker: %v", err)
	}
}

// TryRead copies buffered inbound bytes into p without blocking. Once the
// read ring is empty it returns 0 and a nil error while the connection is
// alive, ErrClosed after Shutdown, the worker's error after a fatal failure
// and io.EOF after the peer has gone.
func (v *Vchan) TryRead(p []byte) (int, error) {
	v.mu.Lock()
	n := v.readRing.Read(p)
	var err error
	if n == 0 && len(p) > 0 {
		switch {
		case v.shutdown:
			err = ErrClosed
		case v.err != nil:
			err = v.err
		case v.state == StateDisconnected:
			err = io.EOF
		}
	}
	v.mu.Unlock()

	if n > 0 {
		v.wakeWorker()
	}
	return n, err
}

// TryWrite buffers as much of p as fits in the write ring without blocking
// and returns the count. Data may be buffered while still CONNECTING.
func (v *Vchan) TryWrite(p []byte) (int, error) {
	v.mu.Lock()
	var err error
	switch {
	case v.shutdown:
		err = ErrClosed
	case v.err != nil:
		err = v.err
	case v.state == StateDisconnected:
		err = ErrDisconnected
	}
	n := 0
	if err == nil {
		n = v.writeRing.Write(p)
	}
	v.mu.Unlock()

	if n > 0 {
		v.wakeWorker()
	}
	return n, err
}

// Read blocks until at least one byte is available and copies up to len(p)
// bytes into p. Bytes received before the peer disconnected are still
// returned; io.EOF follows once they are consumed.
func (v *Vchan) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		seen := v.waiter.generation()
		n, err := v.TryRead(p)
		if n > 0 || err != nil {
			return n, err
		}
		if err := v.waitEvent(seen); err != nil {
			return 0, err
		}
	}
}

// Write blocks until all of p is buffered in the write ring. A short count
// is returned only with an error.
func (v *Vchan) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		seen := v.waiter.generation()
		n, err := v.TryWrite(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if total == len(p) {
			break
		}
		if err := v.waitEvent(seen); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Wait blocks until the worker signals progress or a state change. It
// returns ErrClosed once Shutdown has been requested.
func (v *Vchan) Wait() error {
	if err := v.waitEvent(v.waiter.generation()); err != nil {
		return err
	}
	if v.shutdownRequested() {
		return ErrClosed
	}
	return nil
}

// EventFD returns the read end of the socket event pipe. It becomes readable
// whenever the worker moved data or changed state; call Wait to consume the
// notification.
func (v *Vchan) EventFD() int {
	return v.socketEvent.r
}

// DataReady returns the number of bytes that can be read without blocking
func (v *Vchan) DataReady() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.readRing.Filled()
}

// BufferSpace returns the number of bytes that can be written without blocking
func (v *Vchan) BufferSpace() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.writeRing.Available()
}

package vchan

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// eventPipe is a two-endpoint wake primitive. Writers put a single byte in to
// mean "something changed"; the reader drains everything it finds.
// Both ends are non-blocking.
type eventPipe struct {
	r int
	w int
}

func newEventPipe() (*eventPipe, error) {
	p, err := newPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	return &eventPipe{r: p[0], w: p[1]}, nil
}

var notifyByte = [1]byte{0}

// notify writes one byte. A full pipe already holds an unread byte, so
// EAGAIN counts as delivered.
func (p *eventPipe) notify(write writeFunc) error {
	for {
		n, err := write(p.w, notifyByte[:])
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return nil
		case err != nil:
			return err
		case n != 1:
			return io.ErrShortWrite
		}
		return nil
	}
}

// drain discards every pending byte and returns how many there were
func (p *eventPipe) drain(read readFunc) (int, error) {
	var buf [64]byte
	total := 0
	for {
		n, err := read(p.r, buf[:])
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return total, nil
		case err != nil:
			return total, err
		case n == 0:
			return total, nil
		}
		total += n
	}
}

func (p *eventPipe) close() error {
	return errors.Join(unix.Close(p.r), unix.Close(p.w))
}

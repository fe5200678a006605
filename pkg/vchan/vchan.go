package vchan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"avaneesh/vchan-go/pkg/internal/logger"
	"avaneesh/vchan-go/pkg/ring"
)

// Vchan is the control block of one channel. It is shared by the API-facing
// side and the worker goroutine; mu guards every field in the first group,
// including all ring bookkeeping.
type Vchan struct {
	mu          sync.Mutex
	state       State
	shutdown    bool
	socketFD    int // listening, connecting or connected socket
	userEvent   *eventPipe
	socketEvent *eventPipe
	readRing    *ring.Ring // peer -> application
	writeRing   *ring.Ring // application -> peer
	err         error      // fatal worker error

	config  Config
	logger  logger.Logger
	stats   *Statistics
	sys     *sysCalls
	waiter  *eventWaiter
	started atomic.Bool
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open builds a control block in CONNECTING around fd without starting a
// worker. fd is a listening socket (for RunServerWorker) or a connected
// socket (for RunClientWorker). Ownership of fd passes to the Vchan.
func Open(fd int, config Config) (*Vchan, error) {
	return open(fd, config, defaultSysCalls())
}

func open(fd int, config Config, sys *sysCalls) (*Vchan, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	readRing, err := ring.New(config.ReadMin)
	if err != nil {
		return nil, fmt.Errorf("read ring: %w", err)
	}
	writeRing, err := ring.New(config.WriteMin)
	if err != nil {
		return nil, fmt.Errorf("write ring: %w", err)
	}

	userEvent, err := newEventPipe()
	if err != nil {
		return nil, fmt.Errorf("user event: %w", err)
	}
	socketEvent, err := newEventPipe()
	if err != nil {
		userEvent.close()
		return nil, fmt.Errorf("socket event: %w", err)
	}

	log := config.Logger
	if log == nil {
		log = logger.GetDefault()
	}
	name := config.Path
	if name == "" {
		name = fmt.Sprintf("fd=%d", fd)
	}

	return &Vchan{
		state:       StateConnecting,
		socketFD:    fd,
		userEvent:   userEvent,
		socketEvent: socketEvent,
		readRing:    readRing,
		writeRing:   writeRing,
		config:      config,
		logger:      logger.WithPrefix(log, "vchan["+name+"]"),
		stats:       NewStatistics(),
		sys:         sys,
		waiter:      newEventWaiter(),
		done:        make(chan struct{}),
	}, nil
}

// NewServer listens on config.Path and starts a server worker that accepts
// one peer. Setup failures are returned; the channel never reaches CONNECTING.
func NewServer(config Config) (*Vchan, error) {
	if err := validatePath(config.Path); err != nil {
		return nil, err
	}

	fd, err := Listen(config.Path)
	if err != nil {
		return nil, err
	}

	v, err := Open(fd, config)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	v.logger.Info("listening")
	if err := v.start(v.serverWorker); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// NewClient connects to config.Path, retrying every config.ConnectDelay until
// the server accepts or ctx ends, and starts a client worker.
func NewClient(ctx context.Context, config Config) (*Vchan, error) {
	config = config.withDefaults()
	if err := validatePath(config.Path); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	log := config.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	fd, err := connect(ctx, config.Path, config.ConnectDelay, defaultSysCalls(), log)
	if err != nil {
		return nil, err
	}

	v, err := Open(fd, config)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	v.changeState(StateConnected)
	if err := v.start(v.clientWorker); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// Shutdown requests that the channel stop once every buffered outbound byte
// has been written to the peer. It does not wait; see Done and Close.
func (v *Vchan) Shutdown() {
	v.mu.Lock()
	already := v.shutdown
	v.shutdown = true
	v.mu.Unlock()

	if already {
		return
	}

	v.logger.Debug("shutdown requested")
	if err := v.userEvent.notify(unix.Write); err != nil {
		v.logger.Error("wake worker: %v", err)
	}
	// Wake blocked API callers too.
	if err := v.socketEvent.notify(unix.Write); err != nil {
		v.logger.Error("wake waiters: %v", err)
	}
}

// Close requests shutdown, waits for the worker to flush outbound data and
// exit, and releases all descriptors. Close blocks for as long as the peer
// leaves outbound data unread.
func (v *Vchan) Close() error {
	v.closeOnce.Do(func() {
		v.Shutdown()
		if v.started.Load() {
			<-v.done
		}
		v.waiter.closeWait()

		v.mu.Lock()
		defer v.mu.Unlock()

		var errs []error
		if v.socketFD >= 0 {
			errs = append(errs, unix.Close(v.socketFD))
			v.socketFD = -1
		}
		errs = append(errs, v.userEvent.close(), v.socketEvent.close())
		v.closeErr = errors.Join(errs...)
		v.logger.Debug("closed")
	})
	return v.closeErr
}

// Done is closed when the worker exits
func (v *Vchan) Done() <-chan struct{} {
	return v.done
}

// Err returns the error that stopped the worker, or nil
func (v *Vchan) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// State returns the current connection state
func (v *Vchan) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Stats returns channel statistics
func (v *Vchan) Stats() Stats {
	return v.stats.Snapshot()
}

// Path returns the rendezvous socket path, if any
func (v *Vchan) Path() string {
	return v.config.Path
}

// String returns string representation of the channel
func (v *Vchan) String() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fmt.Sprintf("Vchan{Path=%s, State=%s, Read=%s, Write=%s}",
		v.config.Path, v.state, v.readRing, v.writeRing)
}

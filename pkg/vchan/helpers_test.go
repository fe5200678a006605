package vchan

import (
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// socketPath returns a rendezvous path short enough for sun_path
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "vchan")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "sock")
}

// socketPair returns a non-blocking descriptor for the channel and a net.Conn
// for the test's side of the connection.
func socketPair(t *testing.T) (int, net.Conn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair failed: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("SetNonblock failed: %v", err)
	}

	return fds[0], fdConn(t, fds[1])
}

// fdConn wraps a connected socket descriptor as a net.Conn owned by the test
func fdConn(t *testing.T, fd int) net.Conn {
	t.Helper()
	f := os.NewFile(uintptr(fd), "peer")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		t.Fatalf("FileConn failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestVchan opens a control block around fd with a quiet logger. Close is
// registered as cleanup, so the test must let any started worker finish.
func newTestVchan(t *testing.T, fd int, config Config, sys *sysCalls) *Vchan {
	t.Helper()
	if config.Logger == nil {
		config.Logger = NewNoOpLogger()
	}
	if sys == nil {
		sys = defaultSysCalls()
	}
	v, err := open(fd, config, sys)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func waitDone(t *testing.T, v *Vchan, timeout time.Duration) {
	t.Helper()
	select {
	case <-v.Done():
	case <-time.After(timeout):
		t.Fatalf("Worker did not finish within %s (state %s)", timeout, v.State())
	}
}

func waitState(t *testing.T, v *Vchan, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for v.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected state %s, got %s", want, v.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// stateRecorder collects the states passed to OnStateChange
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func patternBytes(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7) + seed
	}
	return b
}

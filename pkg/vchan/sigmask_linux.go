//go:build linux

package vchan

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Synchronous fault signals stay deliverable: the runtime turns them into
// panics, and a blocked fault signal kills the process instead.
var syncSignals = []syscall.Signal{
	unix.SIGSEGV,
	unix.SIGBUS,
	unix.SIGFPE,
	unix.SIGILL,
	unix.SIGTRAP,
	unix.SIGSYS,
}

// blockAsyncSignals blocks every asynchronous signal on the calling thread.
func blockAsyncSignals() error {
	var set unix.Sigset_t
	bits := uint(unsafe.Sizeof(set.Val[0])) * 8
	for i := range set.Val {
		set.Val[i] = ^set.Val[i]
	}
	for _, sig := range syncSignals {
		n := uint(sig) - 1
		set.Val[n/bits] &^= 1 << (n % bits)
	}
	return unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil)
}

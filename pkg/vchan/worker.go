package vchan

import (
	"fmt"
	"runtime"
)

// RunServerWorker is the entry point of a server-role worker. It accepts one
// peer on the control block's listening socket, pumps data until the
// connection ends and moves the state to DISCONNECTED. It blocks until the
// worker finishes and is normally run in its own goroutine; NewServer does
// that for you.
func (v *Vchan) RunServerWorker() {
	if !v.started.CompareAndSwap(false, true) {
		v.logger.Error("RunServerWorker: %v", ErrAlreadyStarted)
		return
	}
	defer close(v.done)
	v.serverWorker()
}

// RunClientWorker is the entry point of a client-role worker. The control
// block must hold a connected socket (see Connect). It moves the state to
// CONNECTED, pumps data until the connection ends and moves the state to
// DISCONNECTED.
func (v *Vchan) RunClientWorker() {
	if !v.started.CompareAndSwap(false, true) {
		v.logger.Error("RunClientWorker: %v", ErrAlreadyStarted)
		return
	}
	defer close(v.done)
	v.clientWorker()
}

// start launches run as the worker goroutine. The started flag is set before
// the goroutine exists so Close always waits for it.
func (v *Vchan) start(run func()) error {
	if !v.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go func() {
		defer close(v.done)
		run()
	}()
	return nil
}

func (v *Vchan) serverWorker() {
	if err := lockWorkerThread(); err != nil {
		v.fail(err)
		return
	}
	if err := v.runServer(); err != nil {
		v.fail(err)
	}
}

func (v *Vchan) clientWorker() {
	if err := lockWorkerThread(); err != nil {
		v.fail(err)
		return
	}

	v.mu.Lock()
	fd := v.socketFD
	connecting := v.state == StateConnecting
	v.mu.Unlock()

	// Open leaves a connected socket in CONNECTING; NewClient has already
	// moved past it.
	if connecting {
		v.changeState(StateConnected)
	}

	if err := v.pump(fd); err != nil {
		v.fail(err)
	}
	v.changeState(StateDisconnected)
}

// lockWorkerThread dedicates the calling OS thread to the worker and blocks
// asynchronous signals on it. The thread is never unlocked, so it exits with
// the goroutine and takes the modified signal mask with it.
func lockWorkerThread() error {
	runtime.LockOSThread()
	if err := blockAsyncSignals(); err != nil {
		return fmt.Errorf("block signals: %w", err)
	}
	return nil
}

// fail records a fatal worker error and wakes the API side so blocked
// callers can observe it.
func (v *Vchan) fail(err error) {
	v.logger.Error("worker failed: %v", err)

	v.mu.Lock()
	if v.err == nil {
		v.err = err
	}
	nerr := v.socketEvent.notify(v.sys.write)
	v.mu.Unlock()

	if nerr != nil {
		v.logger.Error("notify failure: %v", nerr)
	}
}

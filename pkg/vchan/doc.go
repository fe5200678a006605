// Package vchan implements a local-socket backend for the vchan byte-stream
// channel.
//
// A vchan normally lives on a ring shared between two virtual machines. This
// backend carries the same two rings over a Unix domain socket instead, so the
// consumer API works on a single host without hypervisor shared memory.
//
// Each channel has a control block (Vchan) shared by two execution contexts:
//
//   - the API-facing side, which fills the write ring, drains the read ring
//     and requests shutdown;
//   - a worker goroutine, locked to its own OS thread, which establishes the
//     connection and then runs the I/O pump moving bytes between the socket
//     and the rings.
//
// The two sides share one mutex and wake each other through a pair of pipes:
// the API writes a byte to the user event pipe after touching a ring, the pump
// writes a byte to the socket event pipe after moving data or changing state.
// A pending byte only means "re-check"; its value is ignored.
//
// A server channel accepts exactly one peer:
//
//	srv, err := vchan.NewServer(vchan.DefaultConfig("/run/qubes/vchan.sock"))
//	if err != nil {
//		return err
//	}
//	defer srv.Close()
//
// and a client connects to it, retrying every 100 ms until the server is
// listening:
//
//	cli, err := vchan.NewClient(ctx, vchan.DefaultConfig("/run/qubes/vchan.sock"))
//
// Both implement io.ReadWriteCloser. Close flushes buffered outbound data to
// the peer before tearing the connection down.
//
// The package targets Unix systems; signal masking on the worker thread is
// only applied on Linux.
package vchan

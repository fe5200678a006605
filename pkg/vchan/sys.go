package vchan

import "golang.org/x/sys/unix"

type (
	pollFunc    func(fds []unix.PollFd, timeout int) (int, error)
	readFunc    func(fd int, p []byte) (int, error)
	writeFunc   func(fd int, p []byte) (int, error)
	acceptFunc  func(fd int) (int, error)
	connectFunc func(fd int, sa unix.Sockaddr) error
)

// sysCalls is the set of system calls made by the worker and the connect
// loop. Tests substitute individual entries.
type sysCalls struct {
	poll    pollFunc
	read    readFunc
	write   writeFunc
	accept  acceptFunc
	connect connectFunc
}

func defaultSysCalls() *sysCalls {
	return &sysCalls{
		poll:    unix.Poll,
		read:    unix.Read,
		write:   unix.Write,
		accept:  acceptConn,
		connect: unix.Connect,
	}
}

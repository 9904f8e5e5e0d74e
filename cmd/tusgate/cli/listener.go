package cli

import (
	"errors"
	"net"
	"os"
)

// NewListener binds a TCP listener at addr.
func NewListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// NewUnixListener binds to a UNIX socket at path, removing a stale socket
// file left behind by a previous crashed process. Grounded on the
// teacher's cmd/tusd/cli/listener.go, borrowed in turn from Gunicorn's
// socket-rebinding logic.
func NewUnixListener(path string) (net.Listener, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if stat.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	} else {
		return nil, errors.New("specified path is not a socket")
	}

	return net.Listen("unix", path)
}

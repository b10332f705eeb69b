//go:build !linux

package netbind

import (
	"errors"
	"syscall"
)

// ErrUnsupported is returned when a bound socket is requested off Linux.
var ErrUnsupported = errors.New("interface binding requires linux")

func bindControl(string) func(network, address string, c syscall.RawConn) error {
	return func(string, string, syscall.RawConn) error {
		return ErrUnsupported
	}
}

// Package netbind pins sockets to a network interface so directory queries
// leave through the WAN and egress checks leave through the tunnel.
package netbind

import (
	"net"
	"time"
)

// Dialer returns a dialer whose sockets are bound to iface with SO_BINDTODEVICE.
// An empty iface leaves routing to the kernel.
func Dialer(iface string, timeout time.Duration) *net.Dialer {
	d := &net.Dialer{Timeout: timeout}
	if iface != "" {
		d.Control = bindControl(iface)
	}
	return d
}

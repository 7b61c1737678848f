// Package listener provides the tuned TCP accept path the server runs
// on: kernel-level slowloris filtering on Linux plus per-IP and total
// connection bounds enforced before net/http sees a connection.
package listener

import (
	"net"
	"runtime"

	"github.com/valyala/tcplisten"
)

// ListenTCP creates a TCP listener. On Linux it enables TCP_DEFER_ACCEPT
// (the kernel only wakes the process when the client has sent data, which
// filters connections that connect and go silent) and TCP_FASTOPEN. On
// other platforms it falls back to net.Listen.
func ListenTCP(network, addr string) (net.Listener, error) {
	if network == "tcp" {
		network = "tcp4" // tcplisten does not accept the dual-stack "tcp"
	}

	if runtime.GOOS == "linux" {
		cfg := tcplisten.Config{
			DeferAccept: true,
			FastOpen:    true,
		}
		return cfg.NewListener(network, addr)
	}

	return net.Listen(network, addr)
}

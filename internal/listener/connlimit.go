package listener

import (
	"net"
	"sync"
	"sync/atomic"
)

// Defaults for LimitConns when the corresponding ConnLimits field is zero.
const (
	DefaultMaxConnsPerIP = 50
	DefaultMaxTotalConns = 10000
)

// ConnLimits bounds concurrent connections at the TCP accept level,
// before a connection consumes a goroutine or enters HTTP parsing.
type ConnLimits struct {
	MaxPerIP int
	MaxTotal int64
}

// connLimiter wraps a net.Listener, dropping accepts that would exceed
// the per-IP or total connection bounds.
type connLimiter struct {
	net.Listener
	limits ConnLimits
	total  int64 // atomic
	mu     sync.Mutex
	counts map[string]int
}

// LimitConns wraps l with connection limiting.
func LimitConns(l net.Listener, limits ConnLimits) net.Listener {
	if limits.MaxPerIP <= 0 {
		limits.MaxPerIP = DefaultMaxConnsPerIP
	}
	if limits.MaxTotal <= 0 {
		limits.MaxTotal = DefaultMaxTotalConns
	}
	return &connLimiter{
		Listener: l,
		limits:   limits,
		counts:   make(map[string]int),
	}
}

// Accept implements net.Listener, silently closing connections over a
// limit and waiting for the next acceptable one.
func (l *connLimiter) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		if atomic.AddInt64(&l.total, 1) > l.limits.MaxTotal {
			atomic.AddInt64(&l.total, -1)
			conn.Close()
			continue
		}

		ip := addrIP(conn.RemoteAddr())
		if ip == "" {
			atomic.AddInt64(&l.total, -1)
			conn.Close()
			continue
		}

		l.mu.Lock()
		if l.counts[ip] >= l.limits.MaxPerIP {
			l.mu.Unlock()
			atomic.AddInt64(&l.total, -1)
			conn.Close()
			continue
		}
		l.counts[ip]++
		l.mu.Unlock()

		return &countedConn{Conn: conn, ip: ip, l: l}, nil
	}
}

func addrIP(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}
	return host
}

// countedConn decrements the limiter's counters exactly once on Close.
type countedConn struct {
	net.Conn
	ip     string
	l      *connLimiter
	closed int32 // atomic
}

func (c *countedConn) Close() error {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.l.mu.Lock()
		c.l.counts[c.ip]--
		if c.l.counts[c.ip] <= 0 {
			delete(c.l.counts, c.ip)
		}
		c.l.mu.Unlock()
		atomic.AddInt64(&c.l.total, -1)
	}
	return c.Conn.Close()
}

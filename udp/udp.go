// Package udp is the datagram transport used by the client and server: one
// request or response per datagram, no retransmission.
package udp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/util"
)

// ErrClosed is returned by Read once the connection has been closed.
var ErrClosed = fmt.Errorf("%w: connection closed", common.ErrTransport)

type Conn struct {
	c *net.UDPConn
}

// Open binds a socket on port on all interfaces; port 0 picks a free port.
func Open(port int) (*Conn, error) {
	c, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("%w: listen on %d: %v", common.ErrTransport, port, err)
	}
	util.DPrintf(3, "udp: listening on %v\n", c.LocalAddr())
	return &Conn{c: c}, nil
}

// Resolve looks up host:port once.
func Resolve(host string, port int) (*net.UDPAddr, error) {
	a, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s:%d: %v", common.ErrTransport, host, port, err)
	}
	return a, nil
}

func classify(op string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %s: %v", common.ErrTimeout, op, err)
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %s: %v", common.ErrTransport, op, err)
}

// Read receives one datagram into buf. A datagram larger than buf is
// truncated to len(buf).
func (c *Conn) Read(buf []byte) (int, *net.UDPAddr, error) {
	n, from, err := c.c.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, classify("read", err)
	}
	return n, from, nil
}

// Write sends b as a single datagram.
func (c *Conn) Write(b []byte, to *net.UDPAddr) error {
	n, err := c.c.WriteToUDP(b, to)
	if err != nil {
		return classify("write", err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: short write to %v: %d of %d bytes", common.ErrTransport, to, n, len(b))
	}
	return nil
}

// SetReadDeadline bounds the next Read; the zero time waits forever.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.c.SetReadDeadline(t)
}

func (c *Conn) LocalAddr() *net.UDPAddr {
	return c.c.LocalAddr().(*net.UDPAddr)
}

func (c *Conn) Close() error {
	return c.c.Close()
}

// SameAddr reports whether a and b name the same endpoint.
func SameAddr(a, b *net.UDPAddr) bool {
	return a.Port == b.Port && a.IP.Equal(b.IP)
}

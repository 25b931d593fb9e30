// Package client is the library callers use to reach a file server. Every
// call sends one request datagram and waits a bounded time for the reply;
// nothing is retried.
package client

import (
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/inode"
	"github.com/mit-pdos/go-mfs/proto"
	"github.com/mit-pdos/go-mfs/udp"
	"github.com/mit-pdos/go-mfs/util"
)

const DefaultTimeout = 5 * time.Second

// Client holds at most one outstanding call at a time.
//
// A reply lost after the server applied a request makes the call fail with
// ErrTimeout even though the change is durable; a late reply to such a call
// may then be taken as the reply to the next one.
type Client struct {
	mu      *sync.Mutex
	conn    *udp.Conn
	srv     *net.UDPAddr
	timeout time.Duration
	buf     []byte
}

// Dial resolves the server address and binds a local socket.
func Dial(host string, port int) (*Client, error) {
	return DialTimeout(host, port, DefaultTimeout)
}

func DialTimeout(host string, port int, timeout time.Duration) (*Client, error) {
	srv, err := udp.Resolve(host, port)
	if err != nil {
		return nil, err
	}
	conn, err := udp.Open(0)
	if err != nil {
		return nil, err
	}
	c := &Client{
		mu:      new(sync.Mutex),
		conn:    conn,
		srv:     srv,
		timeout: timeout,
		buf:     make([]byte, proto.MaxDatagram+1),
	}
	util.DPrintf(1, "client: %v -> %v\n", conn.LocalAddr(), srv)
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// call sends req and returns the decoded reply. A negative result code is
// returned as the matching error kind along with the response.
func (c *Client) call(req proto.Request) (*proto.Response, error) {
	b, err := proto.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.Write(b, c.srv); err != nil {
		return nil, err
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	for {
		n, from, err := c.conn.Read(c.buf)
		if err != nil {
			util.DPrintf(1, "client: %v: %v\n", req.Op(), err)
			return nil, err
		}
		if !udp.SameAddr(from, c.srv) {
			util.DPrintf(3, "client: ignoring datagram from %v\n", from)
			continue
		}
		resp, err := proto.DecodeResponse(c.buf[:n])
		if err != nil {
			return nil, err
		}
		util.DPrintf(5, "client: %v rc %d\n", req.Op(), resp.Rc)
		if err := proto.CodeToErr(resp.Rc); err != nil {
			return resp, fmt.Errorf("%v: %w", req.Op(), err)
		}
		return resp, nil
	}
}

// Ping checks that the server is answering.
func (c *Client) Ping() error {
	_, err := c.call(&proto.InitReq{})
	return err
}

func (c *Client) Lookup(pinum common.Inum, name string) (common.Inum, error) {
	resp, err := c.call(&proto.LookupReq{Pinum: pinum, Name: name})
	if err != nil {
		return common.NULLINUM, err
	}
	return common.Inum(resp.Rc), nil
}

// LookupPath resolves a slash-separated path from the root directory.
func (c *Client) LookupPath(path string) (common.Inum, error) {
	inum := common.ROOTINUM
	for _, name := range strings.Split(path, "/") {
		if name == "" {
			continue
		}
		var err error
		inum, err = c.Lookup(inum, name)
		if err != nil {
			return common.NULLINUM, fmt.Errorf("%s: %w", path, err)
		}
	}
	return inum, nil
}

func (c *Client) Stat(inum common.Inum) (inode.Stat, error) {
	resp, err := c.call(&proto.StatReq{Inum: inum})
	if err != nil {
		return inode.Stat{}, err
	}
	return resp.Stat, nil
}

func wireOffset(off uint64) (int32, error) {
	if off > math.MaxInt32 {
		return 0, fmt.Errorf("%w: offset %d", common.ErrInvalidArg, off)
	}
	return int32(off), nil
}

// Write stores data, at most one block, at off.
func (c *Client) Write(inum common.Inum, off uint64, data []byte) error {
	o, err := wireOffset(off)
	if err != nil {
		return err
	}
	_, err = c.call(&proto.WriteReq{Inum: inum, Offset: o, NBytes: int32(len(data)), Buf: data})
	return err
}

// Read returns n bytes, at most one block, at off.
func (c *Client) Read(inum common.Inum, off uint64, n uint64) ([]byte, error) {
	o, err := wireOffset(off)
	if err != nil {
		return nil, err
	}
	if n > common.BlockSize {
		return nil, fmt.Errorf("%w: read of %d bytes", common.ErrInvalidArg, n)
	}
	resp, err := c.call(&proto.ReadReq{Inum: inum, Offset: o, NBytes: int32(n)})
	if err != nil {
		return nil, err
	}
	return resp.Buf[:n], nil
}

// Create makes name in directory pinum, or finds the existing entry, and
// returns its inode.
func (c *Client) Create(pinum common.Inum, t common.Ftype, name string) (common.Inum, error) {
	resp, err := c.call(&proto.CreateReq{Pinum: pinum, Type: t, Name: name})
	if err != nil {
		return common.NULLINUM, err
	}
	return resp.Ent.Inum, nil
}

// Unlink removes name from pinum. Like the server, it treats a name too
// long to exist as already removed.
func (c *Client) Unlink(pinum common.Inum, name string) error {
	if uint64(len(name)) > common.MAXNAME {
		return nil
	}
	_, err := c.call(&proto.UnlinkReq{Pinum: pinum, Name: name})
	return err
}

// ReadDir lists the live entries of a directory by reading it one entry at
// a time.
func (c *Client) ReadDir(inum common.Inum) ([]inode.DirEnt, error) {
	st, err := c.Stat(inum)
	if err != nil {
		return nil, err
	}
	if st.Type != common.FTYPE_DIR {
		return nil, fmt.Errorf("%w: %d", common.ErrNotDir, inum)
	}
	want := int(st.Size / common.DIRENTSZ)
	var ents []inode.DirEnt
	for off := uint64(0); off < common.MAXFILESZ && len(ents) < want; off += common.DIRENTSZ {
		b, err := c.Read(inum, off, common.DIRENTSZ)
		if errors.Is(err, common.ErrHole) {
			off += common.BlockSize - common.DIRENTSZ
			continue
		}
		if err != nil {
			return nil, err
		}
		if de := inode.DecodeDirEnt(b); !de.Free() {
			ents = append(ents, de)
		}
	}
	return ents, nil
}

// Shutdown asks the server to flush its state and exit.
func (c *Client) Shutdown() error {
	_, err := c.call(&proto.ShutdownReq{})
	return err
}

// Package server runs the receive-dispatch-reply loop on top of a file
// system.
package server

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/fs"
	"github.com/mit-pdos/go-mfs/inode"
	"github.com/mit-pdos/go-mfs/proto"
	"github.com/mit-pdos/go-mfs/udp"
	"github.com/mit-pdos/go-mfs/util"
)

type Server struct {
	fs   *fs.Fs
	conn *udp.Conn
}

func New(fsys *fs.Fs, conn *udp.Conn) *Server {
	return &Server{fs: fsys, conn: conn}
}

// Serve handles one datagram at a time until a shutdown request, which
// returns nil, or until the connection fails or is closed.
func (s *Server) Serve() error {
	buf := make([]byte, proto.MaxDatagram+1)
	util.DPrintf(0, "serving on %v\n", s.conn.LocalAddr())
	for {
		n, from, err := s.conn.Read(buf)
		if err != nil {
			if errors.Is(err, udp.ErrClosed) {
				util.DPrintf(0, "connection closed\n")
			}
			return err
		}
		resp, stop := s.Handle(buf[:n])
		if err := s.conn.Write(resp.Encode(), from); err != nil {
			util.DPrintf(0, "reply to %v: %v\n", from, err)
		}
		if stop {
			util.DPrintf(0, "shut down by %v\n", from)
			return nil
		}
	}
}

// Close stops a running Serve.
func (s *Server) Close() error {
	return s.conn.Close()
}

// Handle decodes and executes one request. It reports whether the request
// was a shutdown, after which the file system is closed.
func (s *Server) Handle(b []byte) (*proto.Response, bool) {
	req, err := proto.DecodeRequest(b)
	if err != nil {
		util.DPrintf(1, "bad request: %v\n", err)
		return proto.MkResponse(proto.RcFailure), false
	}
	resp, err := s.dispatch(req)
	if err != nil {
		util.DPrintf(1, "%v: %v\n", req.Op(), err)
		resp = proto.MkResponse(proto.ErrToCode(err))
	}
	_, stop := req.(*proto.ShutdownReq)
	return resp, stop
}

func span(off int32, n int32) (uint64, uint64, error) {
	if off < 0 || n < 0 || uint64(n) > common.BlockSize {
		return 0, 0, fmt.Errorf("%w: %d bytes at %d", common.ErrInvalidArg, n, off)
	}
	return uint64(off), uint64(n), nil
}

func (s *Server) dispatch(req proto.Request) (*proto.Response, error) {
	resp := proto.MkResponse(proto.RcOK)
	switch r := req.(type) {
	case *proto.InitReq:
	case *proto.LookupReq:
		inum, err := s.fs.Lookup(r.Pinum, r.Name)
		if err != nil {
			return nil, err
		}
		resp.Rc = int32(inum)
	case *proto.StatReq:
		st, err := s.fs.Stat(r.Inum)
		if err != nil {
			return nil, err
		}
		resp.Stat = st
	case *proto.WriteReq:
		off, n, err := span(r.Offset, r.NBytes)
		if err != nil {
			return nil, err
		}
		if err := s.fs.Write(r.Inum, off, r.Buf[:n]); err != nil {
			return nil, err
		}
	case *proto.ReadReq:
		off, n, err := span(r.Offset, r.NBytes)
		if err != nil {
			return nil, err
		}
		data, err := s.fs.Read(r.Inum, off, n)
		if err != nil {
			return nil, err
		}
		resp.Buf = data
		if st, err := s.fs.Stat(r.Inum); err == nil && st.Type == common.FTYPE_DIR {
			resp.Ent = inode.DecodeDirEnt(data)
		}
	case *proto.CreateReq:
		inum, err := s.fs.Create(r.Pinum, r.Type, r.Name)
		if err != nil {
			return nil, err
		}
		resp.Ent = inode.DirEnt{Name: r.Name, Inum: inum}
	case *proto.UnlinkReq:
		if err := s.fs.Unlink(r.Pinum, r.Name); err != nil {
			return nil, err
		}
	case *proto.ShutdownReq:
		if err := s.fs.Shutdown(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %v", common.ErrProtocol, req.Op())
	}
	return resp, nil
}

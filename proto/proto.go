// Package proto defines the fixed-size request and response datagrams
// exchanged between the client and the server.
//
// A request is a 32-bit op tag followed by the op's payload, padded to
// ReqSize. A response is always RespSize bytes: a result code, a data block
// (read), a stat record (stat) and a directory entry (directory read). All
// integers are 32-bit little-endian; names are MAXNAME-byte NUL-padded fields.
package proto

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/inode"
	"github.com/mit-pdos/go-mfs/util"
)

type Op int32

const (
	OpInit     Op = 1
	OpLookup   Op = 2
	OpStat     Op = 3
	OpWrite    Op = 4
	OpRead     Op = 5
	OpCreate   Op = 6
	OpUnlink   Op = 7
	OpShutdown Op = 8
)

func (op Op) String() string {
	switch op {
	case OpInit:
		return "init"
	case OpLookup:
		return "lookup"
	case OpStat:
		return "stat"
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUnlink:
		return "unlink"
	case OpShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("op(%d)", int32(op))
}

const (
	payloadSz   = 3*4 + common.BlockSize // largest payload: write
	ReqSize     = 4 + payloadSz
	statSz      = 2 * 4
	RespSize    = 4 + common.BlockSize + statSz + common.DIRENTSZ
	MaxDatagram = RespSize
)

// Request is one of the *Req types below.
type Request interface {
	Op() Op
}

type InitReq struct{}

type LookupReq struct {
	Pinum common.Inum
	Name  string
}

type StatReq struct {
	Inum common.Inum
}

// WriteReq carries a full block; only the first NBytes are written.
type WriteReq struct {
	Inum   common.Inum
	Offset int32
	NBytes int32
	Buf    []byte
}

type ReadReq struct {
	Inum   common.Inum
	Offset int32
	NBytes int32
}

type CreateReq struct {
	Pinum common.Inum
	Type  common.Ftype
	Name  string
}

type UnlinkReq struct {
	Pinum common.Inum
	Name  string
}

type ShutdownReq struct{}

func (*InitReq) Op() Op     { return OpInit }
func (*LookupReq) Op() Op   { return OpLookup }
func (*StatReq) Op() Op     { return OpStat }
func (*WriteReq) Op() Op    { return OpWrite }
func (*ReadReq) Op() Op     { return OpRead }
func (*CreateReq) Op() Op   { return OpCreate }
func (*UnlinkReq) Op() Op   { return OpUnlink }
func (*ShutdownReq) Op() Op { return OpShutdown }

// wireName checks that name fits the fixed name field.
func wireName(name string) error {
	if uint64(len(name)) > common.MAXNAME {
		return fmt.Errorf("%w: %d bytes", common.ErrInvalidName, len(name))
	}
	return nil
}

// reqName returns the name carried by req, if any.
func reqName(req Request) string {
	switch r := req.(type) {
	case *LookupReq:
		return r.Name
	case *UnlinkReq:
		return r.Name
	case *CreateReq:
		return r.Name
	}
	return ""
}

// EncodeRequest returns the ReqSize-byte datagram for req.
func EncodeRequest(req Request) ([]byte, error) {
	if err := wireName(reqName(req)); err != nil {
		return nil, err
	}
	enc := marshal.NewEnc(ReqSize)
	enc.PutInt32(uint32(req.Op()))
	switch r := req.(type) {
	case *InitReq, *ShutdownReq:
	case *LookupReq:
		enc.PutInt32(uint32(r.Pinum))
		enc.PutBytes(inode.PutName(r.Name))
	case *UnlinkReq:
		enc.PutInt32(uint32(r.Pinum))
		enc.PutBytes(inode.PutName(r.Name))
	case *StatReq:
		enc.PutInt32(uint32(r.Inum))
	case *WriteReq:
		if uint64(len(r.Buf)) > common.BlockSize {
			return nil, fmt.Errorf("%w: write of %d bytes", common.ErrInvalidArg, len(r.Buf))
		}
		enc.PutInt32(uint32(r.Inum))
		enc.PutInt32(uint32(r.Offset))
		enc.PutInt32(uint32(r.NBytes))
		buf := make([]byte, common.BlockSize)
		copy(buf, r.Buf)
		enc.PutBytes(buf)
	case *ReadReq:
		enc.PutInt32(uint32(r.Inum))
		enc.PutInt32(uint32(r.Offset))
		enc.PutInt32(uint32(r.NBytes))
	case *CreateReq:
		enc.PutInt32(uint32(r.Pinum))
		enc.PutInt32(uint32(r.Type))
		enc.PutBytes(inode.PutName(r.Name))
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", common.ErrProtocol, req)
	}
	return enc.Finish(), nil
}

// DecodeRequest parses a received datagram. Anything but a ReqSize datagram
// with a known tag is ErrProtocol.
func DecodeRequest(b []byte) (Request, error) {
	if uint64(len(b)) != ReqSize {
		return nil, fmt.Errorf("%w: request of %d bytes", common.ErrProtocol, len(b))
	}
	dec := marshal.NewDec(b)
	op := Op(int32(dec.GetInt32()))
	switch op {
	case OpInit:
		return &InitReq{}, nil
	case OpShutdown:
		return &ShutdownReq{}, nil
	case OpLookup:
		r := &LookupReq{Pinum: common.Inum(int32(dec.GetInt32()))}
		r.Name = inode.GetName(dec.GetBytes(common.MAXNAME))
		return r, nil
	case OpUnlink:
		r := &UnlinkReq{Pinum: common.Inum(int32(dec.GetInt32()))}
		r.Name = inode.GetName(dec.GetBytes(common.MAXNAME))
		return r, nil
	case OpStat:
		return &StatReq{Inum: common.Inum(int32(dec.GetInt32()))}, nil
	case OpWrite:
		r := &WriteReq{Inum: common.Inum(int32(dec.GetInt32()))}
		r.Offset = int32(dec.GetInt32())
		r.NBytes = int32(dec.GetInt32())
		r.Buf = util.CloneByteSlice(dec.GetBytes(common.BlockSize))
		return r, nil
	case OpRead:
		r := &ReadReq{Inum: common.Inum(int32(dec.GetInt32()))}
		r.Offset = int32(dec.GetInt32())
		r.NBytes = int32(dec.GetInt32())
		return r, nil
	case OpCreate:
		r := &CreateReq{Pinum: common.Inum(int32(dec.GetInt32()))}
		r.Type = common.Ftype(int32(dec.GetInt32()))
		r.Name = inode.GetName(dec.GetBytes(common.MAXNAME))
		return r, nil
	}
	return nil, fmt.Errorf("%w: unknown op %d", common.ErrProtocol, int32(op))
}

// Response is the single reply to every request. Rc is negative on failure;
// on success it is 0, or the inode number for lookup and create.
type Response struct {
	Rc   int32
	Buf  []byte // read data, at most one block
	Stat inode.Stat
	Ent  inode.DirEnt
}

// MkResponse returns a response carrying rc and no data.
func MkResponse(rc int32) *Response {
	return &Response{Rc: rc, Ent: inode.DirEnt{Inum: common.NULLINUM}}
}

func (r *Response) Encode() []byte {
	enc := marshal.NewEnc(RespSize)
	enc.PutInt32(uint32(r.Rc))
	buf := make([]byte, common.BlockSize)
	copy(buf, r.Buf)
	enc.PutBytes(buf)
	enc.PutInt32(uint32(r.Stat.Type))
	enc.PutInt32(uint32(r.Stat.Size))
	enc.PutBytes(r.Ent.Encode())
	return enc.Finish()
}

// DecodeResponse parses a reply; the data buffer is always a full block.
func DecodeResponse(b []byte) (*Response, error) {
	if uint64(len(b)) != RespSize {
		return nil, fmt.Errorf("%w: response of %d bytes", common.ErrProtocol, len(b))
	}
	dec := marshal.NewDec(b)
	r := &Response{}
	r.Rc = int32(dec.GetInt32())
	r.Buf = util.CloneByteSlice(dec.GetBytes(common.BlockSize))
	r.Stat.Type = common.Ftype(int32(dec.GetInt32()))
	r.Stat.Size = uint64(dec.GetInt32())
	r.Ent = inode.DecodeDirEnt(dec.GetBytes(common.DIRENTSZ))
	return r, nil
}

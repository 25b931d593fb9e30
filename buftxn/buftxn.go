package buftxn

import (
	"fmt"

	"github.com/mit-pdos/go-mfs/addr"
	"github.com/mit-pdos/go-mfs/buf"
	"github.com/mit-pdos/go-mfs/disk"
	"github.com/mit-pdos/go-mfs/util"
)

//
// Write-through operation layer used by the file system. A BufTxn holds the
// objects one request has read or written; CommitWait writes the dirty ones in
// place and then issues a barrier, so a request that reports success is
// durable. There is no log: a crash during CommitWait can leave a prefix of the
// writes on disk.
//

type TransId = uint64

type BufTxn struct {
	d    disk.Disk
	bufs *buf.BufMap // map of bufs read/written by this transaction
	Id   TransId
}

func Begin(d disk.Disk, id TransId) *BufTxn {
	trans := &BufTxn{
		d:    d,
		bufs: buf.MkBufMap(),
		Id:   id,
	}
	util.DPrintf(3, "Begin: %v\n", trans.Id)
	return trans
}

// ReadBuf returns the object at addr, loading it on first use. Later calls
// see this transaction's own modifications.
func (buftxn *BufTxn) ReadBuf(addr addr.Addr, sz uint64) (*buf.Buf, error) {
	b := buftxn.bufs.Lookup(addr)
	if b == nil {
		var err error
		b, err = buf.MkBufLoad(buftxn.d, addr, sz)
		if err != nil {
			return nil, err
		}
		buftxn.bufs.Insert(b)
	}
	if b.Sz != sz {
		panic(fmt.Errorf("ReadBuf %v: size %d, cached %d", addr, sz, b.Sz))
	}
	return b, nil
}

// Caller overwrites addr without reading it
func (buftxn *BufTxn) OverWrite(addr addr.Addr, sz uint64, data []byte) {
	b := buftxn.bufs.Lookup(addr)
	if b == nil {
		b = buf.MkBuf(addr, sz, data)
		buftxn.bufs.Insert(b)
	} else {
		if sz != b.Sz {
			panic("overwrite")
		}
		b.Data = data
	}
	b.SetDirty()
}

func (buftxn *BufTxn) NDirty() uint64 {
	return buftxn.bufs.Ndirty()
}

// CommitWait writes the dirty bufs of this transaction and waits for them to
// be durable.
func (buftxn *BufTxn) CommitWait() error {
	bufs := buftxn.bufs.DirtyBufs()
	util.DPrintf(3, "Commit %d: %d bufs\n", buftxn.Id, len(bufs))
	if len(bufs) == 0 {
		return nil
	}
	for _, b := range bufs {
		if err := b.WriteDirect(buftxn.d); err != nil {
			return err
		}
	}
	return buftxn.d.Barrier()
}

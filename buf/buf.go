// buf manages sub-block disk objects (inodes, directory and data blocks,
// bitmap blocks) that are read and written in place.
package buf

import (
	"fmt"

	"github.com/mit-pdos/go-mfs/addr"
	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/disk"
	"github.com/mit-pdos/go-mfs/util"
)

// A Buf is a write to a disk object (inode, directory block, data block or
// bitmap block)
type Buf struct {
	Addr  addr.Addr
	Sz    uint64 // number of bits
	Data  []byte
	dirty bool // has this object been written to?
}

func MkBuf(addr addr.Addr, sz uint64, data []byte) *Buf {
	if sz%8 != 0 || addr.Off%8 != 0 {
		panic("MkBuf: object not byte aligned")
	}
	b := &Buf{
		Addr:  addr,
		Sz:    sz,
		Data:  data,
		dirty: false,
	}
	return b
}

// Load the bytes of the object at addr from d into a new buf
func MkBufLoad(d disk.Disk, addr addr.Addr, sz uint64) (*Buf, error) {
	b := MkBuf(addr, sz, make([]byte, sz/8))
	if err := d.ReadAt(b.Data, addr.ByteOff()); err != nil {
		return nil, fmt.Errorf("load %v: %w", addr, err)
	}
	return b, nil
}

func (buf *Buf) IsDirty() bool {
	return buf.dirty
}

func (buf *Buf) SetDirty() {
	buf.dirty = true
}

// WriteDirect writes exactly the bytes of the object to its location.
func (buf *Buf) WriteDirect(d disk.Disk) error {
	if uint64(len(buf.Data))*8 != buf.Sz {
		panic(fmt.Errorf("buf %v: %d bytes for %d bits", buf.Addr, len(buf.Data), buf.Sz))
	}
	util.DPrintf(5, "%v: write direct %d bytes\n", buf.Addr, len(buf.Data))
	var err error
	if buf.Sz == common.NBITBLOCK {
		err = d.Write(uint64(buf.Addr.Blkno), buf.Data)
	} else {
		err = d.WriteAt(buf.Data, buf.Addr.ByteOff())
	}
	if err != nil {
		return err
	}
	buf.dirty = false
	return nil
}

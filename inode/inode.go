// Package inode holds the on-disk encodings of inodes and directory blocks.
package inode

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-mfs/common"
)

// Stat is the attribute pair reported by the stat operation.
type Stat struct {
	Type common.Ftype
	Size uint64
}

type Inode struct {
	Inum   common.Inum
	Type   common.Ftype
	Size   uint64
	Direct [common.NDIRECT]int32 // absolute block numbers, NULLPTR if unassigned
}

// MkInode returns an empty inode of type t with no blocks assigned.
func MkInode(inum common.Inum, t common.Ftype) *Inode {
	ip := &Inode{Inum: inum, Type: t}
	for i := range ip.Direct {
		ip.Direct[i] = common.NULLPTR
	}
	return ip
}

func (ip *Inode) String() string {
	return fmt.Sprintf("# %d t %v sz %d", ip.Inum, ip.Type, ip.Size)
}

// Encode returns the INODESZ-byte on-disk form of ip.
func (ip *Inode) Encode() []byte {
	enc := marshal.NewEnc(common.INODESZ)
	enc.PutInt32(uint32(ip.Type))
	enc.PutInt32(uint32(ip.Size))
	for _, p := range ip.Direct {
		enc.PutInt32(uint32(p))
	}
	return enc.Finish()
}

func Decode(buf []byte, inum common.Inum) *Inode {
	ip := &Inode{Inum: inum}
	dec := marshal.NewDec(buf)
	ip.Type = common.Ftype(int32(dec.GetInt32()))
	ip.Size = uint64(dec.GetInt32())
	for i := range ip.Direct {
		ip.Direct[i] = int32(dec.GetInt32())
	}
	return ip
}

func (ip *Inode) Stat() Stat {
	return Stat{Type: ip.Type, Size: ip.Size}
}

func (ip *Inode) IsDir() bool {
	return ip.Type == common.FTYPE_DIR
}

// Assigned reports whether direct slot i points at a block.
func (ip *Inode) Assigned(i uint64) bool {
	return ip.Direct[i] != common.NULLPTR
}

// Blocks returns the assigned direct pointers in slot order.
func (ip *Inode) Blocks() []common.Bnum {
	var bns []common.Bnum
	for _, p := range ip.Direct {
		if p != common.NULLPTR {
			bns = append(bns, common.Bnum(p))
		}
	}
	return bns
}

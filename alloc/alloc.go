package alloc

import (
	"fmt"

	"github.com/mit-pdos/go-mfs/addr"
	"github.com/mit-pdos/go-mfs/buftxn"
	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/disk"
	"github.com/mit-pdos/go-mfs/util"
)

// Allocator uses a bit map to allocate and free numbers. Number n is bit n of
// the bitmap starting at block start; only numbers below max are handed out.
//
// The whole bitmap is kept in memory. Blocks changed since the last Commit
// are remembered and written out by the caller's transaction.
type Alloc struct {
	start common.Bnum
	nblk  uint64
	max   uint64
	bits  []byte
	dirty map[uint64]bool // bitmap blocks (relative to start) to write
}

func MkAlloc(start common.Bnum, nblk uint64, max uint64) *Alloc {
	if max > nblk*common.NBITBLOCK {
		panic(fmt.Errorf("MkAlloc: %d numbers in %d bitmap blocks", max, nblk))
	}
	a := &Alloc{
		start: start,
		nblk:  nblk,
		max:   max,
		bits:  make([]byte, nblk*common.BlockSize),
		dirty: make(map[uint64]bool),
	}
	return a
}

// Load reads an allocator's bitmap from d.
func Load(d disk.Disk, start common.Bnum, nblk uint64, max uint64) (*Alloc, error) {
	a := MkAlloc(start, nblk, max)
	if err := d.ReadAt(a.bits, uint64(start)*common.BlockSize); err != nil {
		return nil, fmt.Errorf("load bitmap at %d: %w", start, err)
	}
	return a, nil
}

// locate returns the byte index into bits and the mask for number n
func (a *Alloc) locate(n uint64) (uint64, byte) {
	if n >= a.max {
		panic(fmt.Errorf("alloc: %d out of range %d", n, a.max))
	}
	ad := addr.MkBitAddr(0, n)
	return uint64(ad.Blkno)*common.BlockSize + ad.Off/8, byte(1) << (ad.Off % 8)
}

func (a *Alloc) IsSet(n uint64) bool {
	i, m := a.locate(n)
	return a.bits[i]&m != 0
}

func (a *Alloc) set(n uint64, v bool) {
	i, m := a.locate(n)
	if v {
		a.bits[i] |= m
	} else {
		a.bits[i] &^= m
	}
	a.dirty[i/common.BlockSize] = true
}

func (a *Alloc) MarkUsed(n uint64) {
	a.set(n, true)
}

// AllocNum marks the lowest free number used and returns it; ok is false if
// every number is in use.
func (a *Alloc) AllocNum() (uint64, bool) {
	for n := uint64(0); n < a.max; n++ {
		if !a.IsSet(n) {
			a.set(n, true)
			util.DPrintf(10, "AllocNum %d: %d\n", a.start, n)
			return n, true
		}
	}
	return 0, false
}

func (a *Alloc) FreeNum(n uint64) {
	if !a.IsSet(n) {
		util.DPrintf(1, "FreeNum %d: %d already free\n", a.start, n)
	}
	a.set(n, false)
}

func popCnt(b byte) uint64 {
	var count uint64
	var x = b
	for i := uint64(0); i < 8; i++ {
		count += uint64(x & 1)
		x = x >> 1
	}
	return count
}

// NumFree returns the number of free numbers below max
func (a *Alloc) NumFree() uint64 {
	var used uint64
	for _, b := range a.bits {
		used += popCnt(b)
	}
	// bits at or beyond max are never set by us, but an image may have them
	for n := a.max; n < a.nblk*common.NBITBLOCK; n++ {
		ad := addr.MkBitAddr(0, n)
		if a.bits[uint64(ad.Blkno)*common.BlockSize+ad.Off/8]&(1<<(ad.Off%8)) != 0 {
			used--
		}
	}
	return a.max - used
}

// Commit adds the bitmap blocks changed since the last Commit to txn.
func (a *Alloc) Commit(txn *buftxn.BufTxn) {
	for i := range a.dirty {
		blk := util.CloneByteSlice(a.bits[i*common.BlockSize : (i+1)*common.BlockSize])
		txn.OverWrite(addr.MkAddr(a.start+common.Bnum(i), 0), common.NBITBLOCK, blk)
	}
	a.dirty = make(map[uint64]bool)
}

// Flush writes the whole bitmap to d.
func (a *Alloc) Flush(d disk.Disk) error {
	for i := uint64(0); i < a.nblk; i++ {
		blk := a.bits[i*common.BlockSize : (i+1)*common.BlockSize]
		if err := d.Write(uint64(a.start)+i, blk); err != nil {
			return err
		}
	}
	a.dirty = make(map[uint64]bool)
	return nil
}

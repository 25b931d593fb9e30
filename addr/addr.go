package addr

import (
	"fmt"

	"github.com/mit-pdos/go-mfs/common"
)

// Addr identifies the start of a disk object.
//
// Blkno is the block number containing the object, and Off is the location of
// the object within the block (expressed as a bit offset). The size of the
// object is determined by the context in which Addr is used.
type Addr struct {
	Blkno common.Bnum
	Off   uint64 // offset in bits
}

func (a Addr) Flatid() uint64 {
	return uint64(a.Blkno)*common.NBITBLOCK + a.Off
}

// ByteOff is the image byte offset of the first byte holding the object.
func (a Addr) ByteOff() uint64 {
	return uint64(a.Blkno)*common.BlockSize + a.Off/8
}

func (a Addr) String() string {
	return fmt.Sprintf("%d.%d", a.Blkno, a.Off)
}

func MkAddr(blkno common.Bnum, off uint64) Addr {
	return Addr{Blkno: blkno, Off: off}
}

// MkBitAddr locates bit n of a bitmap starting at block start.
//
// Bits are numbered most-significant first within each 32-bit word, and words
// are stored little-endian, so bit 0 of a block is the high bit of byte 3.
func MkBitAddr(start common.Bnum, n uint64) Addr {
	i := n / common.NBITBLOCK
	k := n % common.NBITBLOCK
	word := k / 32
	shift := 31 - k%32
	off := (word*4+shift/8)*8 + shift%8
	return MkAddr(start+common.Bnum(i), off)
}

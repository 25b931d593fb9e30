// Package super describes the on-disk layout: a superblock at block 0 naming
// the inode bitmap, data bitmap, inode table and data region.
package super

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-mfs/addr"
	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/util"
)

// SUPERSZ is the encoded size of the superblock fields; the rest of block 0
// is unused.
const SUPERSZ uint64 = 10 * 4

const SUPERBLK common.Bnum = 0

// FsSuper holds the region addresses (in blocks) and lengths of an image.
// It never changes after the image is formatted.
type FsSuper struct {
	InodeBitmapAddr common.Bnum
	InodeBitmapLen  uint64
	DataBitmapAddr  common.Bnum
	DataBitmapLen   uint64
	InodeRegionAddr common.Bnum
	InodeRegionLen  uint64
	DataRegionAddr  common.Bnum
	DataRegionLen   uint64
	NumInodes       uint64
	NumData         uint64
}

// MkFsSuper lays out an image holding numInodes inodes and numData data
// blocks, each region directly after the previous one.
func MkFsSuper(numInodes uint64, numData uint64) *FsSuper {
	fs := &FsSuper{NumInodes: numInodes, NumData: numData}
	fs.InodeBitmapAddr = SUPERBLK + 1
	fs.InodeBitmapLen = util.RoundUp(numInodes, common.NBITBLOCK)
	fs.DataBitmapAddr = fs.InodeBitmapAddr + fs.InodeBitmapLen
	fs.DataBitmapLen = util.RoundUp(numData, common.NBITBLOCK)
	fs.InodeRegionAddr = fs.DataBitmapAddr + fs.DataBitmapLen
	fs.InodeRegionLen = util.RoundUp(numInodes*common.INODESZ, common.BlockSize)
	fs.DataRegionAddr = fs.InodeRegionAddr + fs.InodeRegionLen
	fs.DataRegionLen = numData
	return fs
}

func Decode(blk []byte) *FsSuper {
	dec := marshal.NewDec(blk[:SUPERSZ])
	fs := &FsSuper{}
	fs.InodeBitmapAddr = common.Bnum(dec.GetInt32())
	fs.InodeBitmapLen = uint64(dec.GetInt32())
	fs.DataBitmapAddr = common.Bnum(dec.GetInt32())
	fs.DataBitmapLen = uint64(dec.GetInt32())
	fs.InodeRegionAddr = common.Bnum(dec.GetInt32())
	fs.InodeRegionLen = uint64(dec.GetInt32())
	fs.DataRegionAddr = common.Bnum(dec.GetInt32())
	fs.DataRegionLen = uint64(dec.GetInt32())
	fs.NumInodes = uint64(dec.GetInt32())
	fs.NumData = uint64(dec.GetInt32())
	return fs
}

// Encode returns block 0 of the image.
func (fs *FsSuper) Encode() []byte {
	enc := marshal.NewEnc(common.BlockSize)
	enc.PutInt32(uint32(fs.InodeBitmapAddr))
	enc.PutInt32(uint32(fs.InodeBitmapLen))
	enc.PutInt32(uint32(fs.DataBitmapAddr))
	enc.PutInt32(uint32(fs.DataBitmapLen))
	enc.PutInt32(uint32(fs.InodeRegionAddr))
	enc.PutInt32(uint32(fs.InodeRegionLen))
	enc.PutInt32(uint32(fs.DataRegionAddr))
	enc.PutInt32(uint32(fs.DataRegionLen))
	enc.PutInt32(uint32(fs.NumInodes))
	enc.PutInt32(uint32(fs.NumData))
	return enc.Finish()
}

func (fs *FsSuper) String() string {
	return fmt.Sprintf("ibitmap %d+%d dbitmap %d+%d inodes %d+%d data %d+%d (%d inodes, %d blocks)",
		fs.InodeBitmapAddr, fs.InodeBitmapLen, fs.DataBitmapAddr, fs.DataBitmapLen,
		fs.InodeRegionAddr, fs.InodeRegionLen, fs.DataRegionAddr, fs.DataRegionLen,
		fs.NumInodes, fs.NumData)
}

// NBlocks is the number of blocks an image with this layout occupies.
func (fs *FsSuper) NBlocks() uint64 {
	return uint64(fs.DataRegionAddr) + fs.DataRegionLen
}

type region struct {
	name  string
	start common.Bnum
	len   uint64
}

// Validate checks that the regions are ordered, disjoint, large enough for
// the declared counts, and inside an image of diskBlocks blocks.
func (fs *FsSuper) Validate(diskBlocks uint64) error {
	regions := []region{
		{"inode bitmap", fs.InodeBitmapAddr, fs.InodeBitmapLen},
		{"data bitmap", fs.DataBitmapAddr, fs.DataBitmapLen},
		{"inode region", fs.InodeRegionAddr, fs.InodeRegionLen},
		{"data region", fs.DataRegionAddr, fs.DataRegionLen},
	}
	next := SUPERBLK + 1
	for _, r := range regions {
		if r.len == 0 {
			return fmt.Errorf("superblock: empty %s", r.name)
		}
		if r.start < next {
			return fmt.Errorf("superblock: %s at %d overlaps previous region", r.name, r.start)
		}
		next = r.start + r.len
	}
	if next > diskBlocks {
		return fmt.Errorf("superblock: layout needs %d blocks, image has %d", next, diskBlocks)
	}
	if fs.NumInodes == 0 || fs.NumInodes > fs.InodeBitmapLen*common.NBITBLOCK ||
		fs.NumInodes > fs.InodeRegionLen*common.INODEBLK {
		return fmt.Errorf("superblock: %d inodes do not fit bitmap/table", fs.NumInodes)
	}
	if fs.NumData == 0 || fs.NumData > fs.DataBitmapLen*common.NBITBLOCK ||
		fs.NumData > fs.DataRegionLen {
		return fmt.Errorf("superblock: %d data blocks do not fit bitmap/region", fs.NumData)
	}
	if fs.NumInodes > uint64(1<<31-1) || fs.NumData > uint64(1<<31-1) {
		return fmt.Errorf("superblock: counts exceed 32-bit indices")
	}
	return nil
}

func (fs *FsSuper) NInode() common.Inum {
	return common.Inum(fs.NumInodes)
}

func (fs *FsSuper) Inum2Addr(inum common.Inum) addr.Addr {
	return addr.MkAddr(fs.InodeRegionAddr+common.Bnum(uint64(inum)/common.INODEBLK),
		(uint64(inum)%common.INODEBLK)*common.INODESZ*8)
}

func (fs *FsSuper) Block2addr(blkno common.Bnum) addr.Addr {
	return addr.MkAddr(blkno, 0)
}

// DataBnum converts a data-bitmap index into an absolute block number.
func (fs *FsSuper) DataBnum(n uint64) common.Bnum {
	return fs.DataRegionAddr + common.Bnum(n)
}

// DataIndex converts an absolute block number into a data-bitmap index; ok is
// false if blkno is outside the data region.
func (fs *FsSuper) DataIndex(blkno common.Bnum) (uint64, bool) {
	if blkno < fs.DataRegionAddr || uint64(blkno-fs.DataRegionAddr) >= fs.NumData {
		return 0, false
	}
	return uint64(blkno - fs.DataRegionAddr), true
}

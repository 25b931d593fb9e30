package fs

import (
	"fmt"

	"github.com/mit-pdos/go-mfs/alloc"
	"github.com/mit-pdos/go-mfs/buftxn"
	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/disk"
	"github.com/mit-pdos/go-mfs/inode"
	"github.com/mit-pdos/go-mfs/super"
	"github.com/mit-pdos/go-mfs/util"
)

// Mkfs formats d with room for numInodes inodes and numData data blocks and
// opens the result. The root directory is inode 0 and owns the first data
// block, whose "." and ".." both name the root.
func Mkfs(d disk.Disk, numInodes uint64, numData uint64) (*Fs, error) {
	sb := super.MkFsSuper(numInodes, numData)
	sz, err := d.Size()
	if err != nil {
		return nil, err
	}
	if err := sb.Validate(sz); err != nil {
		return nil, fmt.Errorf("mkfs: %w", err)
	}
	util.DPrintf(0, "Mkfs: %v\n", sb)

	root := inode.MkInode(common.ROOTINUM, common.FTYPE_DIR)
	root.Direct[0] = int32(sb.DataBnum(0))
	root.Size = 2 * common.DIRENTSZ

	op := buftxn.Begin(d, 0)
	op.OverWrite(sb.Block2addr(super.SUPERBLK), common.NBITBLOCK, sb.Encode())
	for bn := sb.InodeRegionAddr; bn < sb.InodeRegionAddr+sb.InodeRegionLen; bn++ {
		blk := make([]byte, common.BlockSize)
		if bn == sb.Inum2Addr(common.ROOTINUM).Blkno {
			copy(blk[sb.Inum2Addr(common.ROOTINUM).Off/8:], root.Encode())
		}
		op.OverWrite(sb.Block2addr(bn), common.NBITBLOCK, blk)
	}
	op.OverWrite(sb.Block2addr(sb.DataBnum(0)), common.NBITBLOCK,
		inode.MkRootBlock(common.ROOTINUM, common.ROOTINUM).Encode())

	ia := alloc.MkAlloc(sb.InodeBitmapAddr, sb.InodeBitmapLen, sb.NumInodes)
	da := alloc.MkAlloc(sb.DataBitmapAddr, sb.DataBitmapLen, sb.NumData)
	ia.MarkUsed(uint64(common.ROOTINUM))
	da.MarkUsed(0)
	if err := op.CommitWait(); err != nil {
		return nil, err
	}
	if err := ia.Flush(d); err != nil {
		return nil, err
	}
	if err := da.Flush(d); err != nil {
		return nil, err
	}
	if err := d.Barrier(); err != nil {
		return nil, err
	}
	return Open(d)
}

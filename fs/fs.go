// Package fs interprets a disk image as a file system and implements the
// operations the server exposes.
package fs

import (
	"fmt"
	"sync"

	"github.com/mit-pdos/go-mfs/alloc"
	"github.com/mit-pdos/go-mfs/buftxn"
	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/disk"
	"github.com/mit-pdos/go-mfs/inode"
	"github.com/mit-pdos/go-mfs/super"
	"github.com/mit-pdos/go-mfs/util"
)

// Fs owns all mutable state of one image. Each operation runs to completion
// under mu, so there is at most one request mutating the image at a time.
type Fs struct {
	mu     *sync.Mutex
	d      disk.Disk
	Super  *super.FsSuper
	ialloc *alloc.Alloc
	dalloc *alloc.Alloc
	nextId buftxn.TransId
	closed bool
}

// Open reads the superblock and bitmaps of a formatted image.
func Open(d disk.Disk) (*Fs, error) {
	blk, err := d.Read(uint64(super.SUPERBLK))
	if err != nil {
		return nil, fmt.Errorf("read superblock: %w", err)
	}
	sb := super.Decode(blk)
	sz, err := d.Size()
	if err != nil {
		return nil, err
	}
	if err := sb.Validate(sz); err != nil {
		return nil, err
	}
	ia, err := alloc.Load(d, sb.InodeBitmapAddr, sb.InodeBitmapLen, sb.NumInodes)
	if err != nil {
		return nil, err
	}
	da, err := alloc.Load(d, sb.DataBitmapAddr, sb.DataBitmapLen, sb.NumData)
	if err != nil {
		return nil, err
	}
	fs := &Fs{
		mu:     new(sync.Mutex),
		d:      d,
		Super:  sb,
		ialloc: ia,
		dalloc: da,
	}
	op := fs.begin()
	root, err := fs.getInode(op, common.ROOTINUM)
	if err != nil {
		return nil, fmt.Errorf("root directory: %w", err)
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("root directory: %w", common.ErrNotDir)
	}
	util.DPrintf(0, "Open: %v\n", sb)
	return fs, nil
}

func (fs *Fs) begin() *buftxn.BufTxn {
	fs.nextId++
	return buftxn.Begin(fs.d, fs.nextId)
}

func (fs *Fs) validInum(inum common.Inum) bool {
	return inum >= 0 && inum < fs.Super.NInode()
}

// getInode loads an allocated inode; anything else is ErrInvalidInode.
func (fs *Fs) getInode(op *buftxn.BufTxn, inum common.Inum) (*inode.Inode, error) {
	if !fs.validInum(inum) || !fs.ialloc.IsSet(uint64(inum)) {
		return nil, fmt.Errorf("%w: %d", common.ErrInvalidInode, inum)
	}
	b, err := op.ReadBuf(fs.Super.Inum2Addr(inum), common.INODESZ*8)
	if err != nil {
		return nil, err
	}
	return inode.Decode(b.Data, inum), nil
}

// putInode adds the whole inode record to op.
func (fs *Fs) putInode(op *buftxn.BufTxn, ip *inode.Inode) {
	op.OverWrite(fs.Super.Inum2Addr(ip.Inum), common.INODESZ*8, ip.Encode())
}

// blockAddr checks that a direct pointer names a data-region block.
func (fs *Fs) blockAddr(ip *inode.Inode, slot uint64) (common.Bnum, error) {
	bn := common.Bnum(ip.Direct[slot])
	if _, ok := fs.Super.DataIndex(bn); !ok {
		return 0, fmt.Errorf("%w: inode %d slot %d points at block %d",
			common.ErrInvalidInode, ip.Inum, slot, ip.Direct[slot])
	}
	return bn, nil
}

func (fs *Fs) readBlock(op *buftxn.BufTxn, bn common.Bnum) ([]byte, error) {
	b, err := op.ReadBuf(fs.Super.Block2addr(bn), common.NBITBLOCK)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

func (fs *Fs) putBlock(op *buftxn.BufTxn, bn common.Bnum, data []byte) {
	op.OverWrite(fs.Super.Block2addr(bn), common.NBITBLOCK, data)
}

// allocs records the numbers an operation allocated so that a failed
// operation leaves the bitmaps as it found them.
type allocs struct {
	inums []uint64
	dnums []uint64
}

func (fs *Fs) allocInode(a *allocs) (common.Inum, bool) {
	n, ok := fs.ialloc.AllocNum()
	if !ok {
		return common.NULLINUM, false
	}
	a.inums = append(a.inums, n)
	return common.Inum(n), true
}

func (fs *Fs) allocBlock(a *allocs) (common.Bnum, bool) {
	n, ok := fs.dalloc.AllocNum()
	if !ok {
		return 0, false
	}
	a.dnums = append(a.dnums, n)
	return fs.Super.DataBnum(n), true
}

func (fs *Fs) freeBlock(bn common.Bnum) {
	if n, ok := fs.Super.DataIndex(bn); ok {
		fs.dalloc.FreeNum(n)
	}
}

func (fs *Fs) abort(a *allocs) {
	for _, n := range a.inums {
		fs.ialloc.FreeNum(n)
	}
	for _, n := range a.dnums {
		fs.dalloc.FreeNum(n)
	}
}

// commit adds the changed bitmap blocks to op and makes everything durable.
func (fs *Fs) commit(op *buftxn.BufTxn) error {
	fs.dalloc.Commit(op)
	fs.ialloc.Commit(op)
	return op.CommitWait()
}

// NumFree reports the number of free inodes and data blocks.
func (fs *Fs) NumFree() (uint64, uint64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.ialloc.NumFree(), fs.dalloc.NumFree()
}

// Stat returns the type and size of an allocated inode.
func (fs *Fs) Stat(inum common.Inum) (inode.Stat, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ip, err := fs.getInode(fs.begin(), inum)
	if err != nil {
		return inode.Stat{}, err
	}
	util.DPrintf(1, "Stat %v\n", ip)
	return ip.Stat(), nil
}

// sync writes both bitmaps and waits for the image to be durable.
func (fs *Fs) sync() error {
	if err := fs.ialloc.Flush(fs.d); err != nil {
		return err
	}
	if err := fs.dalloc.Flush(fs.d); err != nil {
		return err
	}
	return fs.d.Barrier()
}

// Shutdown flushes the bitmaps and closes the image. Calling it again is a
// no-op.
func (fs *Fs) Shutdown() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil
	}
	util.DPrintf(0, "Shutdown\n")
	err := fs.sync()
	if cerr := fs.d.Close(); err == nil {
		err = cerr
	}
	fs.closed = true
	return err
}

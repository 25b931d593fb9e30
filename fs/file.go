package fs

import (
	"fmt"

	"github.com/mit-pdos/go-mfs/buftxn"
	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/inode"
	"github.com/mit-pdos/go-mfs/util"
)

// span is the part of a read or write that falls in one direct block.
type span struct {
	slot uint64
	boff uint64
	n    uint64
}

// spans splits [off, off+n) into at most two block spans. n must be at most
// one block.
func spans(off uint64, n uint64) ([]span, error) {
	if n > common.BlockSize || util.SumOverflows(off, n) {
		return nil, fmt.Errorf("%w: %d bytes at %d", common.ErrInvalidArg, n, off)
	}
	first := off / common.BlockSize
	boff := off % common.BlockSize
	if first >= common.NDIRECT {
		return nil, fmt.Errorf("%w: offset %d", common.ErrInvalidArg, off)
	}
	n1 := util.Min(n, common.BlockSize-boff)
	s := []span{{slot: first, boff: boff, n: n1}}
	if n1 < n {
		if first+1 >= common.NDIRECT {
			return nil, fmt.Errorf("%w: offset %d + %d past last block", common.ErrInvalidArg, off, n)
		}
		s = append(s, span{slot: first + 1, boff: 0, n: n - n1})
	}
	return s, nil
}

// fileInode is getInode for read and write, which report a bad inode as an
// invalid argument.
func (fs *Fs) fileInode(op *buftxn.BufTxn, inum common.Inum) (*inode.Inode, error) {
	ip, err := fs.getInode(op, inum)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidArg, err)
	}
	return ip, nil
}

// Write stores data at off in a regular file, allocating blocks as needed.
// data may span two blocks but is at most one block long.
func (fs *Fs) Write(inum common.Inum, off uint64, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	op := fs.begin()
	ip, err := fs.fileInode(op, inum)
	if err != nil {
		return err
	}
	if ip.IsDir() {
		return fmt.Errorf("%w: %d", common.ErrNotFile, inum)
	}
	sp, err := spans(off, uint64(len(data)))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	a := &allocs{}
	if err := fs.write(op, a, ip, sp, data); err != nil {
		fs.abort(a)
		return err
	}
	ip.Size = util.Max(ip.Size, off+uint64(len(data)))
	fs.putInode(op, ip)
	if err := fs.commit(op); err != nil {
		return err
	}
	util.DPrintf(1, "Write %d off %d n %d: size %d\n", inum, off, len(data), ip.Size)
	return nil
}

func (fs *Fs) write(op *buftxn.BufTxn, a *allocs, ip *inode.Inode, sp []span, data []byte) error {
	done := uint64(0)
	for _, s := range sp {
		var blk []byte
		if ip.Assigned(s.slot) {
			bn, err := fs.blockAddr(ip, s.slot)
			if err != nil {
				return err
			}
			b, err := fs.readBlock(op, bn)
			if err != nil {
				return err
			}
			blk = util.CloneByteSlice(b)
			copy(blk[s.boff:], data[done:done+s.n])
			fs.putBlock(op, bn, blk)
		} else {
			bn, ok := fs.allocBlock(a)
			if !ok {
				return fmt.Errorf("%w: no free data block", common.ErrNoSpace)
			}
			blk = make([]byte, common.BlockSize)
			copy(blk[s.boff:], data[done:done+s.n])
			fs.putBlock(op, bn, blk)
			ip.Direct[s.slot] = int32(bn)
		}
		done += s.n
	}
	return nil
}

// Read returns n bytes at off. Directories are read one entry at a time,
// and reading an unassigned block fails with ErrHole.
func (fs *Fs) Read(inum common.Inum, off uint64, n uint64) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	op := fs.begin()
	ip, err := fs.fileInode(op, inum)
	if err != nil {
		return nil, err
	}
	sp, err := spans(off, n)
	if err != nil {
		return nil, err
	}
	if ip.IsDir() && (n != common.DIRENTSZ || off%common.DIRENTSZ != 0) {
		return nil, fmt.Errorf("%w: directory read of %d at %d", common.ErrInvalidArg, n, off)
	}
	if n == 0 {
		return []byte{}, nil
	}
	data := make([]byte, 0, n)
	for _, s := range sp {
		if !ip.Assigned(s.slot) {
			return nil, fmt.Errorf("%w: inode %d slot %d", common.ErrHole, inum, s.slot)
		}
		bn, err := fs.blockAddr(ip, s.slot)
		if err != nil {
			return nil, err
		}
		blk, err := fs.readBlock(op, bn)
		if err != nil {
			return nil, err
		}
		data = append(data, blk[s.boff:s.boff+s.n]...)
	}
	util.DPrintf(1, "Read %d off %d n %d\n", inum, off, n)
	return data, nil
}

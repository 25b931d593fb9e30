package fs

import (
	"fmt"

	"github.com/mit-pdos/go-mfs/buftxn"
	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/inode"
	"github.com/mit-pdos/go-mfs/util"
)

// dirSlot locates one entry of a directory.
type dirSlot struct {
	bn   common.Bnum
	db   *inode.DirBlock
	slot int
}

func (fs *Fs) getDir(op *buftxn.BufTxn, inum common.Inum) (*inode.Inode, error) {
	dip, err := fs.getInode(op, inum)
	if err != nil {
		return nil, err
	}
	if !dip.IsDir() {
		return nil, fmt.Errorf("%w: %d", common.ErrNotDir, inum)
	}
	return dip, nil
}

func (fs *Fs) readDirBlock(op *buftxn.BufTxn, dip *inode.Inode, i uint64) (common.Bnum, *inode.DirBlock, error) {
	bn, err := fs.blockAddr(dip, i)
	if err != nil {
		return 0, nil, err
	}
	blk, err := fs.readBlock(op, bn)
	if err != nil {
		return 0, nil, err
	}
	return bn, inode.DecodeDirBlock(blk), nil
}

// lookupName scans the directory's blocks in slot order; the returned slot
// is nil if name is not present.
func (fs *Fs) lookupName(op *buftxn.BufTxn, dip *inode.Inode, name string) (*dirSlot, error) {
	for i := uint64(0); i < common.NDIRECT; i++ {
		if !dip.Assigned(i) {
			continue
		}
		bn, db, err := fs.readDirBlock(op, dip, i)
		if err != nil {
			return nil, err
		}
		if s := db.Lookup(name); s >= 0 {
			return &dirSlot{bn: bn, db: db, slot: s}, nil
		}
	}
	return nil, nil
}

func (fs *Fs) Lookup(dinum common.Inum, name string) (common.Inum, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	op := fs.begin()
	dip, err := fs.getDir(op, dinum)
	if err != nil {
		return common.NULLINUM, err
	}
	ds, err := fs.lookupName(op, dip, name)
	if err != nil {
		return common.NULLINUM, err
	}
	if ds == nil {
		util.DPrintf(1, "Lookup %d %q: not found\n", dinum, name)
		return common.NULLINUM, fmt.Errorf("%w: %q in %d", common.ErrNotFound, name, dinum)
	}
	inum := ds.db[ds.slot].Inum
	util.DPrintf(1, "Lookup %d %q -> %d\n", dinum, name, inum)
	return inum, nil
}

// addName places name -> inum in the first free slot of an owned block, or
// else in slot 0 of a newly attached block.
func (fs *Fs) addName(op *buftxn.BufTxn, a *allocs, dip *inode.Inode, name string, inum common.Inum) error {
	ent := inode.DirEnt{Name: name, Inum: inum}
	for i := uint64(0); i < common.NDIRECT; i++ {
		if !dip.Assigned(i) {
			continue
		}
		bn, db, err := fs.readDirBlock(op, dip, i)
		if err != nil {
			return err
		}
		if s := db.FreeSlot(); s >= 0 {
			db[s] = ent
			fs.putBlock(op, bn, db.Encode())
			dip.Size += common.DIRENTSZ
			return nil
		}
	}
	for i := uint64(0); i < common.NDIRECT; i++ {
		if dip.Assigned(i) {
			continue
		}
		bn, ok := fs.allocBlock(a)
		if !ok {
			return fmt.Errorf("%w: no free data block", common.ErrNoSpace)
		}
		db := inode.MkDirBlock()
		db[0] = ent
		fs.putBlock(op, bn, db.Encode())
		dip.Direct[i] = int32(bn)
		dip.Size += common.DIRENTSZ
		return nil
	}
	return fmt.Errorf("%w: directory %d is full", common.ErrNoSpace, dip.Inum)
}

// Create makes name in directory dinum and returns its inode. If name already
// exists its inode is returned and nothing changes.
func (fs *Fs) Create(dinum common.Inum, t common.Ftype, name string) (common.Inum, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	op := fs.begin()
	if _, err := fs.getInode(op, dinum); err != nil {
		return common.NULLINUM, err
	}
	if !inode.ValidName(name) {
		return common.NULLINUM, fmt.Errorf("%w: %q", common.ErrInvalidName, name)
	}
	dip, err := fs.getDir(op, dinum)
	if err != nil {
		return common.NULLINUM, err
	}
	if t != common.FTYPE_DIR && t != common.FTYPE_REG {
		return common.NULLINUM, fmt.Errorf("%w: type %d", common.ErrInvalidArg, t)
	}
	ds, err := fs.lookupName(op, dip, name)
	if err != nil {
		return common.NULLINUM, err
	}
	if ds != nil {
		util.DPrintf(1, "Create %d %q: exists\n", dinum, name)
		return ds.db[ds.slot].Inum, nil
	}

	a := &allocs{}
	inum, err := fs.create(op, a, dip, t, name)
	if err != nil {
		fs.abort(a)
		return common.NULLINUM, err
	}
	if err := fs.commit(op); err != nil {
		return common.NULLINUM, err
	}
	util.DPrintf(1, "Create %d %q %v -> %d\n", dinum, name, t, inum)
	return inum, nil
}

func (fs *Fs) create(op *buftxn.BufTxn, a *allocs, dip *inode.Inode, t common.Ftype, name string) (common.Inum, error) {
	inum, ok := fs.allocInode(a)
	if !ok {
		return common.NULLINUM, fmt.Errorf("%w: no free inode", common.ErrNoSpace)
	}
	ip := inode.MkInode(inum, t)
	if t == common.FTYPE_DIR {
		bn, ok := fs.allocBlock(a)
		if !ok {
			return common.NULLINUM, fmt.Errorf("%w: no free data block", common.ErrNoSpace)
		}
		fs.putBlock(op, bn, inode.MkRootBlock(inum, dip.Inum).Encode())
		ip.Direct[0] = int32(bn)
		ip.Size = 2 * common.DIRENTSZ
	}
	if err := fs.addName(op, a, dip, name, inum); err != nil {
		return common.NULLINUM, err
	}
	fs.putInode(op, ip)
	fs.putInode(op, dip)
	return inum, nil
}

// dirEmpty reports whether a directory holds only "." and "..".
func (fs *Fs) dirEmpty(op *buftxn.BufTxn, ip *inode.Inode) (bool, error) {
	for i := uint64(1); i < common.NDIRECT; i++ {
		if ip.Assigned(i) {
			return false, nil
		}
	}
	if !ip.Assigned(0) {
		return true, nil
	}
	_, db, err := fs.readDirBlock(op, ip, 0)
	if err != nil {
		return false, err
	}
	return db.NUsed(2) == 0, nil
}

// Unlink removes name from directory dinum and frees its inode and blocks.
// Removing a name that does not exist, or one that cannot be a name at all,
// succeeds without effect.
func (fs *Fs) Unlink(dinum common.Inum, name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	op := fs.begin()
	dip, err := fs.getDir(op, dinum)
	if err != nil {
		return err
	}
	if len(name) == 0 || uint64(len(name)) > common.MAXNAME {
		util.DPrintf(1, "Unlink %d: ignoring name of length %d\n", dinum, len(name))
		return nil
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: cannot unlink %q", common.ErrInvalidArg, name)
	}
	ds, err := fs.lookupName(op, dip, name)
	if err != nil {
		return err
	}
	if ds == nil {
		util.DPrintf(1, "Unlink %d %q: not present\n", dinum, name)
		return nil
	}
	inum := ds.db[ds.slot].Inum
	ip, err := fs.getInode(op, inum)
	if err != nil {
		return err
	}
	if ip.IsDir() {
		empty, err := fs.dirEmpty(op, ip)
		if err != nil {
			return err
		}
		if !empty {
			return fmt.Errorf("%w: %q", common.ErrNotEmpty, name)
		}
	}
	for _, bn := range ip.Blocks() {
		fs.freeBlock(bn)
	}
	ip = inode.MkInode(inum, ip.Type)
	fs.putInode(op, ip)

	ds.db[ds.slot] = inode.DirEnt{Inum: common.NULLINUM}
	fs.putBlock(op, ds.bn, ds.db.Encode())
	dip.Size -= common.DIRENTSZ
	fs.putInode(op, dip)
	fs.ialloc.FreeNum(uint64(inum))
	if err := fs.commit(op); err != nil {
		return err
	}
	util.DPrintf(1, "Unlink %d %q (inode %d)\n", dinum, name, inum)
	return nil
}

// ReadDir lists the live entries of a directory in block then slot order.
func (fs *Fs) ReadDir(dinum common.Inum) ([]inode.DirEnt, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	op := fs.begin()
	dip, err := fs.getDir(op, dinum)
	if err != nil {
		return nil, err
	}
	var ents []inode.DirEnt
	for i := uint64(0); i < common.NDIRECT; i++ {
		if !dip.Assigned(i) {
			continue
		}
		_, db, err := fs.readDirBlock(op, dip, i)
		if err != nil {
			return nil, err
		}
		for _, de := range db {
			if !de.Free() {
				ents = append(ents, de)
			}
		}
	}
	return ents, nil
}

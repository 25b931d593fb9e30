package fs

import (
	"fmt"

	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/inode"
)

// Check verifies the image invariants: pointers of allocated inodes name
// allocated blocks owned by no one else, no block is allocated without an
// owner, directory entries name allocated inodes, a directory's size counts
// its live entries, and every allocated inode but the root has exactly one
// name.
func (fs *Fs) Check() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	op := fs.begin()
	owner := make(map[common.Bnum]common.Inum)
	refs := make(map[common.Inum]int)
	var dirs []*inode.Inode

	for i := common.Inum(0); i < fs.Super.NInode(); i++ {
		if !fs.ialloc.IsSet(uint64(i)) {
			continue
		}
		ip, err := fs.getInode(op, i)
		if err != nil {
			return err
		}
		if ip.Type != common.FTYPE_DIR && ip.Type != common.FTYPE_REG {
			return fmt.Errorf("inode %d: bad type %d", i, ip.Type)
		}
		if ip.Size > common.MAXFILESZ {
			return fmt.Errorf("inode %d: size %d", i, ip.Size)
		}
		for s := uint64(0); s < common.NDIRECT; s++ {
			if !ip.Assigned(s) {
				continue
			}
			bn, err := fs.blockAddr(ip, s)
			if err != nil {
				return err
			}
			n, _ := fs.Super.DataIndex(bn)
			if !fs.dalloc.IsSet(n) {
				return fmt.Errorf("inode %d: block %d is free", i, bn)
			}
			if o, ok := owner[bn]; ok {
				return fmt.Errorf("block %d owned by %d and %d", bn, o, i)
			}
			owner[bn] = i
		}
		if ip.IsDir() {
			dirs = append(dirs, ip)
		}
	}
	for n := uint64(0); n < fs.Super.NumData; n++ {
		if _, ok := owner[fs.Super.DataBnum(n)]; fs.dalloc.IsSet(n) && !ok {
			return fmt.Errorf("block %d allocated without owner", fs.Super.DataBnum(n))
		}
	}

	for _, dip := range dirs {
		live := uint64(0)
		for s := uint64(0); s < common.NDIRECT; s++ {
			if !dip.Assigned(s) {
				continue
			}
			_, db, err := fs.readDirBlock(op, dip, s)
			if err != nil {
				return err
			}
			for k, de := range db {
				if de.Free() {
					continue
				}
				live++
				if !fs.validInum(de.Inum) || !fs.ialloc.IsSet(uint64(de.Inum)) {
					return fmt.Errorf("dir %d: %q names free inode %d", dip.Inum, de.Name, de.Inum)
				}
				if s == 0 && k == 0 {
					if de.Name != "." || de.Inum != dip.Inum {
						return fmt.Errorf("dir %d: bad self entry", dip.Inum)
					}
					continue
				}
				if s == 0 && k == 1 {
					if de.Name != ".." {
						return fmt.Errorf("dir %d: bad parent entry", dip.Inum)
					}
					continue
				}
				refs[de.Inum]++
			}
		}
		if dip.Size != live*common.DIRENTSZ {
			return fmt.Errorf("dir %d: size %d but %d entries", dip.Inum, dip.Size, live)
		}
	}
	for i := common.Inum(1); i < fs.Super.NInode(); i++ {
		if fs.ialloc.IsSet(uint64(i)) && refs[i] != 1 {
			return fmt.Errorf("inode %d has %d names", i, refs[i])
		}
	}
	return nil
}

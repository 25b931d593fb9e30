package inode

import (
	"bytes"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-mfs/common"
)

// DirEnt is one 32-byte directory entry. A free slot has Inum NULLINUM.
type DirEnt struct {
	Name string
	Inum common.Inum
}

// PutName encodes name into a MAXNAME-byte NUL-padded field, truncating
// longer names.
func PutName(name string) []byte {
	b := make([]byte, common.MAXNAME)
	copy(b, name)
	return b
}

// GetName decodes a NUL-padded name field; a name filling the whole field has
// no terminator.
func GetName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// ValidName reports whether name can be stored in a directory entry.
func ValidName(name string) bool {
	return len(name) > 0 && uint64(len(name)) <= common.MAXNAME &&
		bytes.IndexByte([]byte(name), 0) < 0
}

func (de DirEnt) Free() bool {
	return de.Inum == common.NULLINUM
}

func (de DirEnt) Encode() []byte {
	enc := marshal.NewEnc(common.DIRENTSZ)
	enc.PutBytes(PutName(de.Name))
	enc.PutInt32(uint32(de.Inum))
	return enc.Finish()
}

func DecodeDirEnt(b []byte) DirEnt {
	dec := marshal.NewDec(b)
	name := GetName(dec.GetBytes(common.MAXNAME))
	return DirEnt{Name: name, Inum: common.Inum(int32(dec.GetInt32()))}
}

// DirBlock is a directory data block: NDIRENT entries.
type DirBlock [common.NDIRENT]DirEnt

// MkDirBlock returns a block with every entry free.
func MkDirBlock() *DirBlock {
	db := &DirBlock{}
	for i := range db {
		db[i].Inum = common.NULLINUM
	}
	return db
}

// MkRootBlock returns the first block of a new directory: "." naming self
// and ".." naming parent, the rest free.
func MkRootBlock(self, parent common.Inum) *DirBlock {
	db := MkDirBlock()
	db[0] = DirEnt{Name: ".", Inum: self}
	db[1] = DirEnt{Name: "..", Inum: parent}
	return db
}

func (db *DirBlock) Encode() []byte {
	enc := marshal.NewEnc(common.BlockSize)
	for _, de := range db {
		enc.PutBytes(de.Encode())
	}
	return enc.Finish()
}

func DecodeDirBlock(blk []byte) *DirBlock {
	db := &DirBlock{}
	for i := range db {
		off := uint64(i) * common.DIRENTSZ
		db[i] = DecodeDirEnt(blk[off : off+common.DIRENTSZ])
	}
	return db
}

// Lookup returns the slot holding name, or -1.
func (db *DirBlock) Lookup(name string) int {
	for i, de := range db {
		if !de.Free() && de.Name == name {
			return i
		}
	}
	return -1
}

// FreeSlot returns the first free slot, or -1.
func (db *DirBlock) FreeSlot() int {
	for i, de := range db {
		if de.Free() {
			return i
		}
	}
	return -1
}

// NUsed counts the allocated entries in slots [from, NDIRENT).
func (db *DirBlock) NUsed(from int) int {
	n := 0
	for _, de := range db[from:] {
		if !de.Free() {
			n++
		}
	}
	return n
}

package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	BlockSize uint64 = disk.BlockSize
	NBITBLOCK uint64 = disk.BlockSize * 8
	INODESZ   uint64 = 128 // on-disk size
	INODEBLK  uint64 = disk.BlockSize / INODESZ
	NDIRECT   uint64 = 30

	DIRENTSZ uint64 = 32 // on-disk size of a directory entry
	NDIRENT  uint64 = disk.BlockSize / DIRENTSZ
	MAXNAME  uint64 = 28 // name field width, no terminator required

	MAXFILESZ = NDIRECT * BlockSize
)

type Inum int32
type Bnum = uint64

const (
	NULLINUM Inum  = -1
	ROOTINUM Inum  = 0
	NULLPTR  int32 = -1 // unassigned direct pointer
)

// Ftype is the on-disk inode type.
type Ftype int32

const (
	FTYPE_DIR Ftype = 0
	FTYPE_REG Ftype = 1
)

func (t Ftype) String() string {
	switch t {
	case FTYPE_DIR:
		return "dir"
	case FTYPE_REG:
		return "file"
	}
	return "unknown"
}

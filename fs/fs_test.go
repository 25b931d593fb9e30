package fs

import (
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/disk"
	"github.com/mit-pdos/go-mfs/inode"
	"github.com/mit-pdos/go-mfs/super"
)

func mkFs(t *testing.T, numInodes uint64, numData uint64) *Fs {
	sb := super.MkFsSuper(numInodes, numData)
	fs, err := Mkfs(disk.NewMemDisk(sb.NBlocks()), numInodes, numData)
	if err != nil {
		t.Fatalf("mkfs: %v", err)
	}
	return fs
}

func mkdata(n int) []byte {
	d := make([]byte, n)
	rand.Read(d)
	return d
}

func (fs *Fs) inodeOf(inum common.Inum) *inode.Inode {
	ip, err := fs.getInode(fs.begin(), inum)
	if err != nil {
		panic(err)
	}
	return ip
}

func isErr(t *testing.T, err error, kind error) {
	t.Helper()
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

func TestRootBootstrap(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)

	st, err := fs.Stat(common.ROOTINUM)
	assert.Nil(err)
	assert.Equal(inode.Stat{Type: common.FTYPE_DIR, Size: 2 * common.DIRENTSZ}, st)

	inum, err := fs.Lookup(common.ROOTINUM, ".")
	assert.Nil(err)
	assert.Equal(common.ROOTINUM, inum)
	inum, err = fs.Lookup(common.ROOTINUM, "..")
	assert.Nil(err)
	assert.Equal(common.ROOTINUM, inum)

	ni, nd := fs.NumFree()
	assert.Equal(uint64(31), ni)
	assert.Equal(uint64(31), nd)
	assert.Equal(int32(fs.Super.DataRegionAddr), fs.inodeOf(0).Direct[0])
	assert.Nil(fs.Check())
}

func TestOpenUnformatted(t *testing.T) {
	_, err := Open(disk.NewMemDisk(10))
	assert.NotNil(t, err)
}

func TestOpenNoRoot(t *testing.T) {
	assert := assert.New(t)
	sb := super.MkFsSuper(32, 32)
	d := disk.NewMemDisk(sb.NBlocks())
	fs, err := Mkfs(d, 32, 32)
	assert.Nil(err)
	assert.Nil(fs.Shutdown())

	// root typed as a regular file
	blk, err := d.Read(uint64(sb.InodeRegionAddr))
	assert.Nil(err)
	blk[0] = byte(common.FTYPE_REG)
	assert.Nil(d.Write(uint64(sb.InodeRegionAddr), blk))
	_, err = Open(d)
	isErr(t, err, common.ErrNotDir)

	// root not allocated
	assert.Nil(d.Write(uint64(sb.InodeBitmapAddr), make(disk.Block, disk.BlockSize)))
	_, err = Open(d)
	isErr(t, err, common.ErrInvalidInode)
	assert.Contains(err.Error(), "root directory")
}

func TestMkfsTooSmall(t *testing.T) {
	_, err := Mkfs(disk.NewMemDisk(10), 32, 32)
	assert.NotNil(t, err)
}

func TestStatErrors(t *testing.T) {
	fs := mkFs(t, 32, 32)
	_, err := fs.Stat(5)
	isErr(t, err, common.ErrInvalidInode)
	_, err = fs.Stat(32)
	isErr(t, err, common.ErrInvalidInode)
	_, err = fs.Stat(-1)
	isErr(t, err, common.ErrInvalidInode)
}

func TestCreateIdempotent(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)

	a, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, "a")
	assert.Nil(err)
	assert.Equal(common.Inum(1), a)
	ni, nd := fs.NumFree()

	a2, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, "a")
	assert.Nil(err)
	assert.Equal(a, a2)
	ni2, nd2 := fs.NumFree()
	assert.Equal(ni, ni2, "no double allocation")
	assert.Equal(nd, nd2)

	st, _ := fs.Stat(common.ROOTINUM)
	assert.Equal(3*common.DIRENTSZ, st.Size)
	st, _ = fs.Stat(a)
	assert.Equal(inode.Stat{Type: common.FTYPE_REG, Size: 0}, st)
	assert.Nil(fs.Check())
}

func TestCreateErrors(t *testing.T) {
	fs := mkFs(t, 32, 32)
	f, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, "f")
	assert.Nil(t, err)

	_, err = fs.Create(common.ROOTINUM, common.FTYPE_REG, "")
	isErr(t, err, common.ErrInvalidName)
	_, err = fs.Create(common.ROOTINUM, common.FTYPE_REG, strings.Repeat("x", 29))
	isErr(t, err, common.ErrInvalidName)
	_, err = fs.Create(40, common.FTYPE_REG, "x")
	isErr(t, err, common.ErrInvalidInode)
	_, err = fs.Create(7, common.FTYPE_REG, "x")
	isErr(t, err, common.ErrInvalidInode)
	_, err = fs.Create(f, common.FTYPE_REG, "x")
	isErr(t, err, common.ErrNotDir)
	_, err = fs.Create(common.ROOTINUM, common.Ftype(7), "x")
	isErr(t, err, common.ErrInvalidArg)

	long := strings.Repeat("y", 28)
	inum, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, long)
	assert.Nil(t, err)
	got, err := fs.Lookup(common.ROOTINUM, long)
	assert.Nil(t, err)
	assert.Equal(t, inum, got)
	assert.Nil(t, fs.Check())
}

func TestMkdir(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)
	d, err := fs.Create(common.ROOTINUM, common.FTYPE_DIR, "d")
	assert.Nil(err)
	st, _ := fs.Stat(d)
	assert.Equal(inode.Stat{Type: common.FTYPE_DIR, Size: 2 * common.DIRENTSZ}, st)

	self, err := fs.Lookup(d, ".")
	assert.Nil(err)
	assert.Equal(d, self)
	parent, err := fs.Lookup(d, "..")
	assert.Nil(err)
	assert.Equal(common.ROOTINUM, parent)

	ents, err := fs.ReadDir(d)
	assert.Nil(err)
	assert.Equal([]inode.DirEnt{{Name: ".", Inum: d}, {Name: "..", Inum: 0}}, ents)

	f, err := fs.Create(d, common.FTYPE_REG, "f")
	assert.Nil(err)
	got, err := fs.Lookup(d, "f")
	assert.Nil(err)
	assert.Equal(f, got)
	_, err = fs.Lookup(common.ROOTINUM, "f")
	isErr(t, err, common.ErrNotFound)
	_, err = fs.Lookup(f, "x")
	isErr(t, err, common.ErrNotDir)
	assert.Nil(fs.Check())
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := mkFs(t, 32, 64)
	tests := []struct {
		off uint64
		n   int
	}{
		{0, 100},
		{common.BlockSize - 10, 20},
		{common.BlockSize, int(common.BlockSize)},
		{3*common.BlockSize + 1, int(common.BlockSize)},
		{29*common.BlockSize + 96, 4000},
		{17, 1},
	}
	for _, tt := range tests {
		inum, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, "f")
		assert.Nil(t, err)
		data := mkdata(tt.n)
		assert.Nil(t, fs.Write(inum, tt.off, data), "write %d at %d", tt.n, tt.off)
		got, err := fs.Read(inum, tt.off, uint64(tt.n))
		assert.Nil(t, err)
		assert.Equal(t, data, got, "read %d at %d", tt.n, tt.off)
		st, _ := fs.Stat(inum)
		assert.Equal(t, tt.off+uint64(tt.n), st.Size)
		assert.Nil(t, fs.Check())
		assert.Nil(t, fs.Unlink(common.ROOTINUM, "f"))
	}
}

func TestSecondBlockAllocation(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)
	inum, _ := fs.Create(common.ROOTINUM, common.FTYPE_REG, "f")
	data := mkdata(20)
	assert.Nil(fs.Write(inum, common.BlockSize-10, data))

	ip := fs.inodeOf(inum)
	assert.True(ip.Assigned(0))
	assert.True(ip.Assigned(1))
	assert.NotEqual(ip.Direct[0], ip.Direct[1])
	assert.False(ip.Assigned(2))

	tail, err := fs.Read(inum, common.BlockSize, 10)
	assert.Nil(err)
	assert.Equal(data[10:], tail)
	head, err := fs.Read(inum, common.BlockSize-10, 10)
	assert.Nil(err)
	assert.Equal(data[:10], head)
	assert.Nil(fs.Check())
}

func TestWriteSize(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)
	inum, _ := fs.Create(common.ROOTINUM, common.FTYPE_REG, "f")
	assert.Nil(fs.Write(inum, 100, mkdata(10)))
	st, _ := fs.Stat(inum)
	assert.Equal(uint64(110), st.Size)

	assert.Nil(fs.Write(inum, 0, []byte("hello")))
	st, _ = fs.Stat(inum)
	assert.Equal(uint64(110), st.Size, "overwrite inside the file keeps its size")

	got, _ := fs.Read(inum, 0, 5)
	assert.Equal([]byte("hello"), got)
	got, _ = fs.Read(inum, 50, 5)
	assert.Equal(make([]byte, 5), got, "new blocks read back as zero")
}

func TestHole(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)
	inum, _ := fs.Create(common.ROOTINUM, common.FTYPE_REG, "f")
	data := mkdata(10)
	assert.Nil(fs.Write(inum, 2*common.BlockSize, data))

	_, err := fs.Read(inum, 0, 10)
	isErr(t, err, common.ErrHole)
	_, err = fs.Read(inum, 2*common.BlockSize-5, 10)
	isErr(t, err, common.ErrHole)
	got, err := fs.Read(inum, 2*common.BlockSize, 10)
	assert.Nil(err)
	assert.Equal(data, got)
	st, _ := fs.Stat(inum)
	assert.Equal(2*common.BlockSize+10, st.Size)
}

func TestWriteErrors(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)
	inum, _ := fs.Create(common.ROOTINUM, common.FTYPE_REG, "f")

	isErr(t, fs.Write(common.ROOTINUM, 0, []byte("x")), common.ErrNotFile)
	isErr(t, fs.Write(9, 0, []byte("x")), common.ErrInvalidArg)
	isErr(t, fs.Write(99, 0, []byte("x")), common.ErrInvalidArg)
	isErr(t, fs.Write(inum, 0, mkdata(int(common.BlockSize)+1)), common.ErrInvalidArg)
	isErr(t, fs.Write(inum, common.MAXFILESZ, []byte("x")), common.ErrInvalidArg)
	isErr(t, fs.Write(inum, common.MAXFILESZ-1, []byte("xy")), common.ErrInvalidArg)

	_, nd := fs.NumFree()
	assert.Nil(fs.Write(inum, 0, nil))
	st, _ := fs.Stat(inum)
	assert.Equal(uint64(0), st.Size)
	_, nd2 := fs.NumFree()
	assert.Equal(nd, nd2)

	assert.Nil(fs.Write(inum, common.MAXFILESZ-1, []byte("x")), "last byte is writable")
	st, _ = fs.Stat(inum)
	assert.Equal(common.MAXFILESZ, st.Size)

	_, err := fs.Read(inum, 0, common.BlockSize+1)
	isErr(t, err, common.ErrInvalidArg)
	_, err = fs.Read(3, 0, 1)
	isErr(t, err, common.ErrInvalidArg)
	assert.Nil(fs.Check())
}

func TestDirectoryRead(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)

	b, err := fs.Read(common.ROOTINUM, 0, common.DIRENTSZ)
	assert.Nil(err)
	assert.Equal(inode.DirEnt{Name: ".", Inum: 0}, inode.DecodeDirEnt(b))
	b, err = fs.Read(common.ROOTINUM, common.DIRENTSZ, common.DIRENTSZ)
	assert.Nil(err)
	assert.Equal(inode.DirEnt{Name: "..", Inum: 0}, inode.DecodeDirEnt(b))
	b, err = fs.Read(common.ROOTINUM, 2*common.DIRENTSZ, common.DIRENTSZ)
	assert.Nil(err)
	assert.True(inode.DecodeDirEnt(b).Free())

	_, err = fs.Read(common.ROOTINUM, 0, common.DIRENTSZ-1)
	isErr(t, err, common.ErrInvalidArg)
	_, err = fs.Read(common.ROOTINUM, 16, common.DIRENTSZ)
	isErr(t, err, common.ErrInvalidArg)
	_, err = fs.Read(common.ROOTINUM, common.BlockSize, common.DIRENTSZ)
	isErr(t, err, common.ErrHole)
}

func TestUnlinkNonEmptyDir(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)
	ni0, nd0 := fs.NumFree()

	d, err := fs.Create(common.ROOTINUM, common.FTYPE_DIR, "D")
	assert.Nil(err)
	_, err = fs.Create(d, common.FTYPE_REG, "f")
	assert.Nil(err)

	isErr(t, fs.Unlink(common.ROOTINUM, "D"), common.ErrNotEmpty)
	_, err = fs.Lookup(common.ROOTINUM, "D")
	assert.Nil(err, "refused unlink leaves the name")

	assert.Nil(fs.Unlink(d, "f"))
	assert.Nil(fs.Unlink(common.ROOTINUM, "D"))
	assert.False(fs.ialloc.IsSet(uint64(d)))
	ni, nd := fs.NumFree()
	assert.Equal(ni0, ni)
	assert.Equal(nd0, nd, "directory block released")
	st, _ := fs.Stat(common.ROOTINUM)
	assert.Equal(2*common.DIRENTSZ, st.Size)
	assert.Nil(fs.Check())
}

func TestLookupAfterUnlink(t *testing.T) {
	fs := mkFs(t, 32, 32)
	_, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, "gone")
	assert.Nil(t, err)
	assert.Nil(t, fs.Unlink(common.ROOTINUM, "gone"))
	_, err = fs.Lookup(common.ROOTINUM, "gone")
	isErr(t, err, common.ErrNotFound)
	assert.Nil(t, fs.Check())
}

func TestUnlinkLeniency(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)
	f, _ := fs.Create(common.ROOTINUM, common.FTYPE_REG, "f")

	assert.Nil(fs.Unlink(common.ROOTINUM, ""))
	assert.Nil(fs.Unlink(common.ROOTINUM, strings.Repeat("z", 29)))
	assert.Nil(fs.Unlink(common.ROOTINUM, "missing"))
	_, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, "")
	isErr(t, err, common.ErrInvalidName)

	isErr(t, fs.Unlink(common.ROOTINUM, "."), common.ErrInvalidArg)
	isErr(t, fs.Unlink(common.ROOTINUM, ".."), common.ErrInvalidArg)
	isErr(t, fs.Unlink(f, "x"), common.ErrNotDir)
	isErr(t, fs.Unlink(20, "x"), common.ErrInvalidInode)

	st, _ := fs.Stat(common.ROOTINUM)
	assert.Equal(3*common.DIRENTSZ, st.Size)
	assert.Nil(fs.Check())
}

func TestUnlinkFreesBlocks(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 32)
	_, nd0 := fs.NumFree()
	f, _ := fs.Create(common.ROOTINUM, common.FTYPE_REG, "f")
	assert.Nil(fs.Write(f, common.BlockSize-1, []byte("ab")))
	assert.Nil(fs.Write(f, 10*common.BlockSize, []byte("c")))
	_, nd := fs.NumFree()
	assert.Equal(nd0-3, nd)

	assert.Nil(fs.Unlink(common.ROOTINUM, "f"))
	_, nd = fs.NumFree()
	assert.Equal(nd0, nd)
	_, err := fs.Stat(f)
	isErr(t, err, common.ErrInvalidInode)

	// the freed inode is reused with no stale pointers
	g, _ := fs.Create(common.ROOTINUM, common.FTYPE_REG, "g")
	assert.Equal(f, g)
	assert.Equal(0, len(fs.inodeOf(g).Blocks()))
	assert.Nil(fs.Check())
}

func TestInodeExhaustion(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 32, 64)
	for i := 0; i < 31; i++ {
		_, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, string(rune('a'+i%26))+string(rune('0'+i/26)))
		assert.Nil(err)
	}
	_, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, "last")
	isErr(t, err, common.ErrNoSpace)
	ni, _ := fs.NumFree()
	assert.Equal(uint64(0), ni)
	_, err = fs.Lookup(common.ROOTINUM, "last")
	isErr(t, err, common.ErrNotFound)
	assert.Nil(fs.Check())
}

func TestDataExhaustion(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 64, 16)
	for i := 0; i < 15; i++ {
		_, err := fs.Create(common.ROOTINUM, common.FTYPE_DIR, string(rune('a'+i)))
		assert.Nil(err)
	}
	ni, nd := fs.NumFree()
	assert.Equal(uint64(0), nd)

	_, err := fs.Create(common.ROOTINUM, common.FTYPE_DIR, "z")
	isErr(t, err, common.ErrNoSpace)
	ni2, _ := fs.NumFree()
	assert.Equal(ni, ni2, "inode of failed create is released")

	// files need no block until written
	f, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, "file")
	assert.Nil(err)
	st, _ := fs.Stat(f)
	assert.Equal(inode.Stat{Type: common.FTYPE_REG, Size: 0}, st)
	ni, nd = fs.NumFree()

	isErr(t, fs.Write(f, 0, []byte("x")), common.ErrNoSpace)
	isErr(t, fs.Write(f, common.BlockSize-1, []byte("xy")), common.ErrNoSpace)
	st, _ = fs.Stat(f)
	assert.Equal(uint64(0), st.Size)
	assert.Equal(0, len(fs.inodeOf(f).Blocks()), "failed write assigns no block")
	ni2, nd2 := fs.NumFree()
	assert.Equal(ni, ni2)
	assert.Equal(nd, nd2)
	assert.Nil(fs.Check())
}

func TestDirectoryGrowth(t *testing.T) {
	assert := assert.New(t)
	fs := mkFs(t, 256, 8)
	names := make([]string, 130)
	for i := range names {
		names[i] = "file" + strings.Repeat("x", i%20) + string(rune('A'+i%26)) + string(rune('A'+i/26))
		_, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, names[i])
		assert.Nil(err)
	}
	root := fs.inodeOf(common.ROOTINUM)
	assert.True(root.Assigned(1), "127th entry starts a second block")
	assert.False(root.Assigned(2))
	assert.Equal(132*common.DIRENTSZ, root.Size)
	for _, n := range names {
		_, err := fs.Lookup(common.ROOTINUM, n)
		assert.Nil(err)
	}

	// a freed slot in the first block is reused before later blocks
	assert.Nil(fs.Unlink(common.ROOTINUM, names[3]))
	_, err := fs.Create(common.ROOTINUM, common.FTYPE_REG, "new")
	assert.Nil(err)
	b, err := fs.Read(common.ROOTINUM, 5*common.DIRENTSZ, common.DIRENTSZ)
	assert.Nil(err)
	assert.Equal("new", inode.DecodeDirEnt(b).Name)
	assert.Nil(fs.Check())
}

func TestPersistence(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "disk.img")
	sb := super.MkFsSuper(32, 32)
	d, err := disk.NewFileDisk(path, sb.NBlocks())
	assert.Nil(err)
	fs, err := Mkfs(d, 32, 32)
	assert.Nil(err)

	dir, _ := fs.Create(common.ROOTINUM, common.FTYPE_DIR, "dir")
	f, _ := fs.Create(dir, common.FTYPE_REG, "f")
	data := mkdata(100)
	assert.Nil(fs.Write(f, common.BlockSize-50, data))
	assert.Nil(fs.Shutdown())
	assert.Nil(fs.Shutdown(), "second shutdown is a no-op")

	d, err = disk.OpenFileDisk(path)
	assert.Nil(err)
	fs, err = Open(d)
	assert.Nil(err)
	defer fs.Shutdown()
	dir2, err := fs.Lookup(common.ROOTINUM, "dir")
	assert.Nil(err)
	assert.Equal(dir, dir2)
	f2, err := fs.Lookup(dir2, "f")
	assert.Nil(err)
	got, err := fs.Read(f2, common.BlockSize-50, 100)
	assert.Nil(err)
	assert.Equal(data, got)
	ni, nd := fs.NumFree()
	assert.Equal(uint64(29), ni)
	assert.Equal(uint64(28), nd)
	assert.Nil(fs.Check())
}

package disk

import (
	"fmt"
	"sync"

	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-mfs/util"
)

var _ Disk = (*FileDisk)(nil)

// FileDisk is a disk image backed by a regular file, accessed only through
// positioned reads and writes.
type FileDisk struct {
	fd        int
	numBlocks uint64
}

// NewFileDisk creates (or resizes) the image at path to numBlocks blocks.
func NewFileDisk(path string, numBlocks uint64) (*FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, err
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if (stat.Mode&unix.S_IFREG) != 0 && uint64(stat.Size) != numBlocks*BlockSize {
		err = unix.Ftruncate(fd, int64(numBlocks*BlockSize))
		if err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	return &FileDisk{fd, numBlocks}, nil
}

// OpenFileDisk opens an existing image; its size determines the number of
// blocks.
func OpenFileDisk(path string) (*FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if stat.Size < int64(BlockSize) {
		unix.Close(fd)
		return nil, fmt.Errorf("image %s is smaller than one block", path)
	}
	return &FileDisk{fd, uint64(stat.Size) / BlockSize}, nil
}

func (d *FileDisk) checkRange(off uint64, n int) error {
	if off+uint64(n) > d.numBlocks*BlockSize {
		return fmt.Errorf("out-of-bounds access at byte %v (+%d)", off, n)
	}
	return nil
}

func (d *FileDisk) ReadAt(p []byte, off uint64) error {
	if err := d.checkRange(off, len(p)); err != nil {
		return err
	}
	n, err := unix.Pread(d.fd, p, int64(off))
	if err != nil {
		panic("read failed: " + err.Error())
	}
	if n != len(p) {
		panic(fmt.Errorf("short read at %v: %d of %d bytes", off, n, len(p)))
	}
	util.DPrintf(20, "read: %v+%d\n", off, len(p))
	return nil
}

func (d *FileDisk) WriteAt(p []byte, off uint64) error {
	if err := d.checkRange(off, len(p)); err != nil {
		return err
	}
	n, err := unix.Pwrite(d.fd, p, int64(off))
	if err != nil {
		panic("write failed: " + err.Error())
	}
	if n != len(p) {
		panic(fmt.Errorf("short write at %v: %d of %d bytes", off, n, len(p)))
	}
	util.DPrintf(20, "write: %v+%d\n", off, len(p))
	return nil
}

func (d *FileDisk) ReadTo(a uint64, buf Block) error {
	if uint64(len(buf)) != BlockSize {
		panic("buffer is not block-sized")
	}
	return d.ReadAt(buf, a*BlockSize)
}

func (d *FileDisk) Read(a uint64) (Block, error) {
	buf := make([]byte, BlockSize)
	err := d.ReadTo(a, buf)
	return buf, err
}

func (d *FileDisk) Write(a uint64, v Block) error {
	if uint64(len(v)) != BlockSize {
		panic(fmt.Errorf("v is not block sized (%d bytes)", len(v)))
	}
	return d.WriteAt(v, a*BlockSize)
}

func (d *FileDisk) Size() (uint64, error) {
	return d.numBlocks, nil
}

func (d *FileDisk) Barrier() error {
	// NOTE: on macOS, this flushes to the drive but doesn't actually issue a
	// disk barrier; see https://golang.org/src/internal/poll/fd_fsync_darwin.go
	// for more details. The correct replacement is to issue a fcntl syscall with
	// cmd F_FULLFSYNC.
	err := unix.Fsync(d.fd)
	if err != nil {
		panic("file sync failed: " + err.Error())
	}
	util.DPrintf(10, "barrier\n")
	return nil
}

func (d *FileDisk) Close() error {
	return unix.Close(d.fd)
}

/////////////////////////
/////////////////////////

var _ Disk = (*MemDisk)(nil)

// MemDisk keeps the image in memory; used by tests and tools.
type MemDisk struct {
	l *sync.Mutex // serializes sub-block read-modify-write
	d disk.Disk
}

func NewMemDisk(numBlocks uint64) *MemDisk {
	return &MemDisk{l: new(sync.Mutex), d: disk.NewMemDisk(numBlocks)}
}

func (d *MemDisk) checkRange(off uint64, n int) error {
	if off+uint64(n) > d.d.Size()*BlockSize {
		return fmt.Errorf("out-of-bounds access at byte %v (+%d)", off, n)
	}
	return nil
}

func (d *MemDisk) ReadAt(p []byte, off uint64) error {
	if err := d.checkRange(off, len(p)); err != nil {
		return err
	}
	d.l.Lock()
	defer d.l.Unlock()
	for done := uint64(0); done < uint64(len(p)); {
		a := (off + done) / BlockSize
		boff := (off + done) % BlockSize
		blk := d.d.Read(a)
		done += uint64(copy(p[done:], blk[boff:]))
	}
	return nil
}

func (d *MemDisk) WriteAt(p []byte, off uint64) error {
	if err := d.checkRange(off, len(p)); err != nil {
		return err
	}
	d.l.Lock()
	defer d.l.Unlock()
	for done := uint64(0); done < uint64(len(p)); {
		a := (off + done) / BlockSize
		boff := (off + done) % BlockSize
		blk := d.d.Read(a)
		done += uint64(copy(blk[boff:], p[done:]))
		d.d.Write(a, blk)
	}
	return nil
}

func (d *MemDisk) ReadTo(a uint64, buf Block) error {
	if uint64(len(buf)) != BlockSize {
		panic("buffer is not block-sized")
	}
	return d.ReadAt(buf, a*BlockSize)
}

func (d *MemDisk) Read(a uint64) (Block, error) {
	buf := make(Block, BlockSize)
	err := d.ReadTo(a, buf)
	return buf, err
}

func (d *MemDisk) Write(a uint64, v Block) error {
	if uint64(len(v)) != BlockSize {
		panic(fmt.Errorf("v is not block-sized (%d bytes)", len(v)))
	}
	return d.WriteAt(v, a*BlockSize)
}

func (d *MemDisk) Size() (uint64, error) {
	// this never changes so we assume it's safe to run lock-free
	return d.d.Size(), nil
}

func (d *MemDisk) Barrier() error { return nil }

func (d *MemDisk) Close() error { return nil }

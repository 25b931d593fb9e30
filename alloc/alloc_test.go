package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/go-mfs/buftxn"
	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/disk"
)

func TestPopCnt(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(0), popCnt(0))
	assert.Equal(uint64(1), popCnt(1))
	assert.Equal(uint64(2), popCnt(3))
	assert.Equal(uint64(2), popCnt(0x81))
	assert.Equal(uint64(8), popCnt(0xff))
}

func TestAllocAscending(t *testing.T) {
	assert := assert.New(t)
	a := MkAlloc(1, 1, 40)
	for i := uint64(0); i < 40; i++ {
		n, ok := a.AllocNum()
		assert.True(ok)
		assert.Equal(i, n)
	}
	_, ok := a.AllocNum()
	assert.False(ok, "allocator should be exhausted")
	assert.Equal(uint64(0), a.NumFree())

	a.FreeNum(17)
	a.FreeNum(3)
	assert.Equal(uint64(2), a.NumFree())
	n, _ := a.AllocNum()
	assert.Equal(uint64(3), n, "lowest free number first")
}

func TestBitOrder(t *testing.T) {
	assert := assert.New(t)
	a := MkAlloc(1, 1, 64)
	a.MarkUsed(0)
	assert.Equal(byte(0x80), a.bits[3])
	a.MarkUsed(31)
	assert.Equal(byte(0x01), a.bits[0])
	a.MarkUsed(32)
	assert.Equal(byte(0x80), a.bits[7])
	assert.True(a.IsSet(31))
	assert.False(a.IsSet(30))
}

func TestCommitAndLoad(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(10)
	a := MkAlloc(2, 2, 2*common.NBITBLOCK)
	a.MarkUsed(5)
	a.MarkUsed(common.NBITBLOCK + 1)

	txn := buftxn.Begin(d, 1)
	a.Commit(txn)
	assert.Equal(uint64(2), txn.NDirty())
	assert.Nil(txn.CommitWait())

	b, err := Load(d, 2, 2, 2*common.NBITBLOCK)
	assert.Nil(err)
	assert.True(b.IsSet(5))
	assert.True(b.IsSet(common.NBITBLOCK + 1))
	assert.False(b.IsSet(6))
	assert.Equal(2*common.NBITBLOCK-2, b.NumFree())

	// nothing changed since the last commit
	txn = buftxn.Begin(d, 2)
	a.Commit(txn)
	assert.Equal(uint64(0), txn.NDirty())
}

func TestFlush(t *testing.T) {
	d := disk.NewMemDisk(4)
	a := MkAlloc(1, 1, 8)
	a.MarkUsed(0)
	assert.Nil(t, a.Flush(d))
	blk, _ := d.Read(1)
	assert.Equal(t, byte(0x80), blk[3])
}

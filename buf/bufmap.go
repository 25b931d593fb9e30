package buf

import (
	"github.com/mit-pdos/go-mfs/addr"
)

//
// A map from Addr's to bufs, remembering insertion order so that writes are
// issued in the order an operation produced them.
//

type BufMap struct {
	addrs map[uint64]*Buf
	order []uint64
}

func MkBufMap() *BufMap {
	a := &BufMap{
		addrs: make(map[uint64]*Buf),
	}
	return a
}

func (bmap *BufMap) Insert(buf *Buf) {
	id := buf.Addr.Flatid()
	if _, ok := bmap.addrs[id]; !ok {
		bmap.order = append(bmap.order, id)
	}
	bmap.addrs[id] = buf
}

func (bmap *BufMap) Lookup(addr addr.Addr) *Buf {
	return bmap.addrs[addr.Flatid()]
}

func (bmap *BufMap) Ndirty() uint64 {
	n := uint64(0)
	for _, b := range bmap.addrs {
		if b.IsDirty() {
			n += 1
		}
	}
	return n
}

func (bmap *BufMap) DirtyBufs() []*Buf {
	bufs := make([]*Buf, 0)
	for _, id := range bmap.order {
		b := bmap.addrs[id]
		if b.IsDirty() {
			bufs = append(bufs, b)
		}
	}
	return bufs
}

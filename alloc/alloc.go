package alloc

import (
	"math/bits"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/super"
)

// Alloc uses a bit map to allocate and free numbers. Bit n corresponds to
// number n. The bitmap occupies a single disk block that is mirrored in
// memory; every flip is written through to disk, and the live counter in
// the superblock follows it.
type Alloc struct {
	sb     *super.FsSuper
	blkno  uint64 // bitmap block on disk
	max    uint64 // numbers are in [0, max)
	next   uint64 // last number handed out; the search starts after it
	bitmap []byte
}

// MkAlloc loads the bitmap stored at blkno.
func MkAlloc(sb *super.FsSuper, blkno uint64, max uint64) *Alloc {
	if max > common.NBITBLOCK {
		panic("MkAlloc")
	}
	a := &Alloc{
		sb:     sb,
		blkno:  blkno,
		max:    max,
		next:   0,
		bitmap: sb.Disk.Read(blkno),
	}
	return a
}

// Zero clears the bitmap on disk and in memory. Counters are left alone;
// only mkfs uses this, before the superblock counters are meaningful.
func (a *Alloc) Zero() {
	for i := range a.bitmap {
		a.bitmap[i] = 0
	}
	a.next = 0
	a.sb.Disk.Write(a.blkno, a.bitmap)
}

func (a *Alloc) Max() uint64 {
	return a.max
}

func (a *Alloc) Test(n uint64) bool {
	if n >= a.max {
		panic("Test")
	}
	return a.bitmap[n/8]&(1<<(n%8)) != 0
}

// Set flips bit n to v and writes the bitmap block. The superblock counter
// only moves if the bit actually changed.
func (a *Alloc) Set(n uint64, v bool) {
	old := a.Test(n)
	if v {
		a.bitmap[n/8] = a.bitmap[n/8] | (1 << (n % 8))
	} else {
		a.bitmap[n/8] = a.bitmap[n/8] & ^(1 << (n % 8))
	}
	a.sb.Disk.Write(a.blkno, a.bitmap)
	if old != v {
		a.sb.Adjust(a.blkno, v)
	}
}

func (a *Alloc) incNext(n uint64) uint64 {
	n = n + 1
	if n >= a.max {
		n = 0
	}
	return n
}

// AllocNum returns the first free number after the last one handed out,
// wrapping around once.
func (a *Alloc) AllocNum() (uint64, error) {
	num := a.next
	for i := uint64(0); i < a.max; i++ {
		num = a.incNext(num)
		if !a.Test(num) {
			a.next = num
			a.Set(num, true)
			util.DPrintf(15, "AllocNum %d: %d\n", a.blkno, num)
			return num, nil
		}
	}
	return 0, common.ErrNoSpace
}

func (a *Alloc) FreeNum(num uint64) {
	util.DPrintf(15, "FreeNum %d: %d\n", a.blkno, num)
	a.Set(num, false)
}

// Count returns the number of allocated numbers.
func (a *Alloc) Count() uint64 {
	var n uint64
	for i := uint64(0); i < a.max/8; i++ {
		n += uint64(bits.OnesCount8(a.bitmap[i]))
	}
	for i := a.max / 8 * 8; i < a.max; i++ {
		if a.Test(i) {
			n++
		}
	}
	return n
}

func (a *Alloc) NumFree() uint64 {
	return a.max - a.Count()
}

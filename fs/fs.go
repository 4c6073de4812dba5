package fs

import (
	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/alloc"
	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/super"
)

// Fs bundles the superblock with the inode and data-block allocators. It is
// the state every layer above the bitmaps operates on.
type Fs struct {
	Super  *super.FsSuper
	Ialloc *alloc.Alloc
	Balloc *alloc.Alloc
}

func mkFs(sb *super.FsSuper) *Fs {
	return &Fs{
		Super:  sb,
		Ialloc: alloc.MkAlloc(sb, sb.InodeBitmap, sb.NInode),
		Balloc: alloc.MkAlloc(sb, sb.DataBitmap, sb.NData),
	}
}

// Format writes a fresh superblock (both copies) and empty bitmaps.
func Format(d disk.Disk) (*Fs, error) {
	sb, err := super.MkFsSuper(d)
	if err != nil {
		return nil, err
	}
	sb.WriteSuper()
	fs := mkFs(sb)
	fs.Ialloc.Zero()
	fs.Balloc.Zero()
	return fs, nil
}

// Load returns nil if d holds no valid superblock.
func Load(d disk.Disk) *Fs {
	sb := super.ReadSuper(d)
	if sb == nil {
		return nil
	}
	util.DPrintf(0, "Load: %v\n", sb)
	return mkFs(sb)
}

func (fs *Fs) Disk() disk.Disk {
	return fs.Super.Disk
}

func (fs *Fs) ReadBlock(bn common.Bnum) disk.Block {
	return fs.Super.Disk.Read(fs.Super.Data2Addr(bn))
}

func (fs *Fs) WriteBlock(bn common.Bnum, b disk.Block) {
	fs.Super.Disk.Write(fs.Super.Data2Addr(bn), b)
}

// AllocBlock allocates a data block and zeroes it on disk, so that nothing
// of a previous owner is visible to the new one.
func (fs *Fs) AllocBlock() (common.Bnum, error) {
	bn, err := fs.Balloc.AllocNum()
	if err != nil {
		return 0, err
	}
	fs.WriteBlock(bn, make(disk.Block, disk.BlockSize))
	util.DPrintf(5, "AllocBlock -> %d\n", bn)
	return bn, nil
}

func (fs *Fs) FreeBlock(bn common.Bnum) {
	util.DPrintf(5, "FreeBlock %d\n", bn)
	fs.Balloc.FreeNum(bn)
}

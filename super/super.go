package super

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/goose-lang/std"
	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-blockfs/common"
)

// FsSuper is the in-memory copy of the superblock. Every mutation of the
// counters is written through to both the primary and the mirror block.
type FsSuper struct {
	Disk disk.Disk

	Size        uint64
	InodeBitmap uint64
	DataBitmap  uint64
	InodeStart  uint64
	NInode      uint64
	DataStart   uint64
	NData       uint64
	InodeCount  uint64 // live inodes
	DataCount   uint64 // live data blocks
	UUID        uuid.UUID
}

func nInode(sz uint64) uint64 {
	n := util.RoundUp(sz/common.INODERATIO, common.INODEBLK) * common.INODEBLK
	if n < common.INODEBLK {
		n = common.INODEBLK
	}
	return util.Min(n, common.NBITBLOCK)
}

// MkFsSuper computes the geometry of a fresh volume covering all of d. The
// counters start at zero and nothing is written.
func MkFsSuper(d disk.Disk) (*FsSuper, error) {
	sz := d.Size()
	ninode := nInode(sz)
	datastart := common.INODESTART + ninode/common.INODEBLK
	// root directory needs one data block, and the last block is the mirror
	if sz < datastart+2 {
		return nil, common.ErrInval
	}
	ndata := util.Min(sz-1-datastart, util.Min(common.NBITBLOCK, common.MAXBNUM))
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("volume uuid: %w", err)
	}
	fs := &FsSuper{
		Disk:        d,
		Size:        sz,
		InodeBitmap: common.INODEBITMAP,
		DataBitmap:  common.DATABITMAP,
		InodeStart:  common.INODESTART,
		NInode:      ninode,
		DataStart:   datastart,
		NData:       ndata,
		UUID:        id,
	}
	util.DPrintf(0, "MkFsSuper: %v\n", fs)
	return fs, nil
}

func (fs *FsSuper) String() string {
	return fmt.Sprintf("sz %d ibm %d dbm %d istart %d ni %d dstart %d nd %d icnt %d dcnt %d %v",
		fs.Size, fs.InodeBitmap, fs.DataBitmap, fs.InodeStart, fs.NInode,
		fs.DataStart, fs.NData, fs.InodeCount, fs.DataCount, fs.UUID)
}

func (fs *FsSuper) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt32(common.MAGIC)
	enc.PutInt(fs.Size)
	enc.PutInt(fs.InodeBitmap)
	enc.PutInt(fs.DataBitmap)
	enc.PutInt(fs.InodeStart)
	enc.PutInt(fs.NInode)
	enc.PutInt(fs.DataStart)
	enc.PutInt(fs.NData)
	enc.PutInt(fs.InodeCount)
	enc.PutInt(fs.DataCount)
	enc.PutBytes(fs.UUID[:])
	return enc.Finish()
}

// Decode returns nil if b does not hold a superblock that fits on d.
func Decode(d disk.Disk, b disk.Block) *FsSuper {
	dec := marshal.NewDec(b)
	if dec.GetInt32() != common.MAGIC {
		return nil
	}
	fs := &FsSuper{Disk: d}
	fs.Size = dec.GetInt()
	fs.InodeBitmap = dec.GetInt()
	fs.DataBitmap = dec.GetInt()
	fs.InodeStart = dec.GetInt()
	fs.NInode = dec.GetInt()
	fs.DataStart = dec.GetInt()
	fs.NData = dec.GetInt()
	fs.InodeCount = dec.GetInt()
	fs.DataCount = dec.GetInt()
	id, err := uuid.FromBytes(dec.GetBytes(16))
	if err != nil {
		return nil
	}
	fs.UUID = id
	if fs.Size > d.Size() || fs.DataStart+fs.NData >= fs.Size {
		return nil
	}
	return fs
}

// Mirror is the block number of the backup superblock.
func (fs *FsSuper) Mirror() uint64 {
	return fs.Size - 1
}

func (fs *FsSuper) WriteSuper() {
	b := fs.Encode()
	fs.Disk.Write(common.SUPERBLOCK, b)
	fs.Disk.Write(fs.Mirror(), b)
}

// ReadSuper loads the superblock from the primary copy, falling back to the
// mirror at the end of the disk. Whichever copy is accepted is written over
// the other one if they differ. ReadSuper returns nil if neither copy is
// valid, in which case the volume needs formatting.
func ReadSuper(d disk.Disk) *FsSuper {
	primary := d.Read(common.SUPERBLOCK)
	if fs := Decode(d, primary); fs != nil {
		mirror := d.Read(fs.Mirror())
		if !std.BytesEqual(primary, mirror) {
			util.DPrintf(0, "ReadSuper: repair mirror at %d\n", fs.Mirror())
			d.Write(fs.Mirror(), primary)
		}
		return fs
	}
	if d.Size() <= common.SUPERBLOCK+1 {
		return nil
	}
	mirror := d.Read(d.Size() - 1)
	if fs := Decode(d, mirror); fs != nil && fs.Mirror() == d.Size()-1 {
		util.DPrintf(0, "ReadSuper: repair primary from mirror\n")
		d.Write(common.SUPERBLOCK, mirror)
		return fs
	}
	return nil
}

// Adjust moves the live counter that belongs to the bitmap at block bitmap
// by one and persists the superblock.
func (fs *FsSuper) Adjust(bitmap uint64, inc bool) {
	var cnt *uint64
	if bitmap == fs.InodeBitmap {
		cnt = &fs.InodeCount
	} else if bitmap == fs.DataBitmap {
		cnt = &fs.DataCount
	} else {
		panic("Adjust")
	}
	if inc {
		*cnt = *cnt + 1
	} else {
		if *cnt == 0 {
			panic("Adjust: underflow")
		}
		*cnt = *cnt - 1
	}
	fs.WriteSuper()
}

// Inum2Addr returns the inode table block holding inum and the byte offset
// of its slot in that block.
func (fs *FsSuper) Inum2Addr(inum common.Inum) (uint64, uint64) {
	return fs.InodeStart + inum/common.INODEBLK, (inum % common.INODEBLK) * common.INODESZ
}

// Data2Addr returns the disk block of data block bn.
func (fs *FsSuper) Data2Addr(bn common.Bnum) uint64 {
	if bn >= fs.NData {
		panic("Data2Addr")
	}
	return fs.DataStart + bn
}

const (
	RegionReserved = iota
	RegionSuper
	RegionBitmap
	RegionInode
	RegionData
)

var regionNames = []string{"reserved", "super", "bitmap", "inode", "data"}

func (fs *FsSuper) RegionNames() []string {
	return regionNames
}

// Region classifies block a of the volume.
func (fs *FsSuper) Region(a uint64) int {
	switch {
	case a == common.SUPERBLOCK || a == fs.Mirror():
		return RegionSuper
	case a == fs.InodeBitmap || a == fs.DataBitmap:
		return RegionBitmap
	case a >= fs.InodeStart && a < fs.DataStart:
		return RegionInode
	case a >= fs.DataStart && a < fs.DataStart+fs.NData:
		return RegionData
	}
	return RegionReserved
}

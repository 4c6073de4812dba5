// Package blockfs is a Unix-like file system on a fixed-size block device.
//
// An *Fs is one mounted volume together with its working directory and
// descriptor table. It is not safe for concurrent use; callers that share
// an *Fs must serialize all calls.
package blockfs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/dir"
	"github.com/mit-pdos/go-blockfs/fd"
	"github.com/mit-pdos/go-blockfs/fs"
	"github.com/mit-pdos/go-blockfs/inode"
	"github.com/mit-pdos/go-blockfs/util/stats"
)

type Fs struct {
	fs    *fs.Fs
	cwd   common.Inum
	fds   *fd.Table
	stats [NUM_OPS]stats.Op
}

func mkFs(fsys *fs.Fs) *Fs {
	return &Fs{
		fs:  fsys,
		cwd: common.ROOTINUM,
		fds: fd.MkTable(common.NFILE),
	}
}

func format(d disk.Disk) (*fs.Fs, error) {
	fsys, err := fs.Format(d)
	if err != nil {
		return nil, err
	}
	root := inode.InitRoot(fsys)
	if err := dir.MkRootDir(fsys, root); err != nil {
		return nil, err
	}
	util.DPrintf(0, "format: %v\n", fsys.Super)
	return fsys, nil
}

// Mkfs formats d and returns the mounted, empty volume.
func Mkfs(d disk.Disk) (*Fs, error) {
	fsys, err := format(d)
	if err != nil {
		return nil, err
	}
	return mkFs(fsys), nil
}

// Mount loads the volume on d. If neither the primary nor the mirror
// superblock is valid, d is formatted.
func Mount(d disk.Disk) (*Fs, error) {
	fsys := fs.Load(d)
	if fsys == nil {
		util.DPrintf(0, "Mount: no file system, formatting\n")
		return Mkfs(d)
	}
	return mkFs(fsys), nil
}

// Mkfs reformats the mounted volume in place. All descriptors are closed
// and the working directory goes back to the root.
func (f *Fs) Mkfs() error {
	defer f.recordOp(OP_MKFS, time.Now())
	fsys, err := format(f.fs.Disk())
	if err != nil {
		return err
	}
	f.fs = fsys
	f.cwd = common.ROOTINUM
	f.fds.Reset()
	return nil
}

// Unmount flushes the device and closes it. f must not be used afterwards.
func (f *Fs) Unmount() {
	f.fs.Disk().Barrier()
	f.fs.Disk().Close()
}

func (f *Fs) Disk() disk.Disk {
	return f.fs.Disk()
}

type FsStat struct {
	UUID        uuid.UUID
	Size        uint64 // blocks in the volume
	Blocks      uint64 // data blocks
	BlocksFree  uint64
	Inodes      uint64
	InodesFree  uint64
	BlockSize   uint64
	MaxFileSize uint64
}

func (f *Fs) Statfs() FsStat {
	sb := f.fs.Super
	return FsStat{
		UUID:        sb.UUID,
		Size:        sb.Size,
		Blocks:      sb.NData,
		BlocksFree:  f.fs.Balloc.NumFree(),
		Inodes:      sb.NInode,
		InodesFree:  f.fs.Ialloc.NumFree(),
		BlockSize:   disk.BlockSize,
		MaxFileSize: common.MaxFileSize(),
	}
}

// Check verifies the allocation invariants of the volume: the bitmaps agree
// with the superblock counters, every allocated inode accounts for exactly
// the data blocks marked in use, and every directory reachable from the
// root is a whole number of records naming allocated inodes.
func (f *Fs) Check() error {
	sb := f.fs.Super
	if n := f.fs.Ialloc.Count(); n != sb.InodeCount {
		return fmt.Errorf("inode bitmap has %d bits set, superblock says %d", n, sb.InodeCount)
	}
	if n := f.fs.Balloc.Count(); n != sb.DataCount {
		return fmt.Errorf("data bitmap has %d bits set, superblock says %d", n, sb.DataCount)
	}
	var nblk uint64
	for inum := common.Inum(0); inum < f.fs.Ialloc.Max(); inum++ {
		if f.fs.Ialloc.Test(inum) {
			nblk += inode.ReadInode(f.fs, inum).StatBlocks()
		}
	}
	if nblk != sb.DataCount {
		return fmt.Errorf("inodes map %d blocks, %d allocated", nblk, sb.DataCount)
	}
	return f.checkDir(common.ROOTINUM, 0)
}

func (f *Fs) checkDir(dnum common.Inum, depth uint64) error {
	if depth > common.MAXPATHLEN {
		return fmt.Errorf("directory # %d: too deep", dnum)
	}
	dip := inode.ReadInode(f.fs, dnum)
	if dip.Size%common.DIRENTSZ != 0 {
		return fmt.Errorf("directory # %d: size %d not a multiple of %d", dnum, dip.Size, common.DIRENTSZ)
	}
	for _, de := range dir.Entries(f.fs, dip) {
		if de.Inum >= f.fs.Super.NInode || !f.fs.Ialloc.Test(de.Inum) {
			return fmt.Errorf("directory # %d: entry %q names free inode %d", dnum, de.Name, de.Inum)
		}
		if dir.IllegalName(de.Name) {
			continue
		}
		if inode.ReadInode(f.fs, de.Inum).IsDir() {
			if err := f.checkDir(de.Inum, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Region and RegionNames classify volume blocks for per-region disk
// accounting (see timed_disk.Layout).
func (f *Fs) Region(a uint64) int {
	return f.fs.Super.Region(a)
}

func (f *Fs) RegionNames() []string {
	return f.fs.Super.RegionNames()
}

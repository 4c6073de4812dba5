package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	NBITBLOCK uint64 = disk.BlockSize * 8

	INODESZ  uint64 = 64 // on-disk size
	INODEBLK uint64 = disk.BlockSize / INODESZ

	// one inode per INODERATIO blocks of volume, see super.MkFsSuper
	INODERATIO uint64 = 4

	NDIRECT   uint64 = 11
	INDIRECT  uint64 = NDIRECT             // slot of the indirect index block
	NBLKINO   uint64 = NDIRECT + 1         // # blk in an inode's blks array
	NINDIRECT uint64 = disk.BlockSize / 2  // # 16-bit blkno per indirect block
	MAXBLOCKS uint64 = NDIRECT + NINDIRECT // addressable data blocks per inode
	MAXBNUM   uint64 = (1 << 16) - 1       // indirect entries are 16 bits wide

	MAXNAMELEN uint64 = 32
	DIRENTSZ   uint64 = 64
	DIRENTBLK  uint64 = disk.BlockSize / DIRENTSZ

	MAXPATHLEN uint64 = 256
	NFILE      uint64 = 256

	MAGIC uint32 = 4008208820
)

// Fixed block numbers of the on-disk layout. The inode table starts at
// INODESTART; everything else is computed from the volume size.
const (
	SUPERBLOCK  uint64 = 1
	INODEBITMAP uint64 = 2
	DATABITMAP  uint64 = 3
	INODESTART  uint64 = 4
)

type Inum = uint64
type Bnum = uint64

const ROOTINUM Inum = 0

// Kind is the type field of an inode.
type Kind uint32

const (
	KindDir  Kind = 0
	KindFile Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "directory"
	case KindFile:
		return "file"
	}
	return "unknown"
}

// Open modes
const (
	O_RDONLY = 0
	O_WRONLY = 1
	O_RDWR   = 2
)

func MaxFileSize() uint64 {
	return MAXBLOCKS * disk.BlockSize
}

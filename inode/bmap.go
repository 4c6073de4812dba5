package inode

import (
	"encoding/binary"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/fs"
)

// The indirect block is an array of NINDIRECT 16-bit data block numbers.

func indGet(b disk.Block, i uint64) common.Bnum {
	return common.Bnum(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
}

func indPut(b disk.Block, i uint64, bn common.Bnum) {
	if bn > common.MAXBNUM {
		panic("indPut")
	}
	binary.LittleEndian.PutUint16(b[i*2:i*2+2], uint16(bn))
}

// Map logical block number bn to a data block number. bn must already be
// mapped.
func (ip *Inode) Bmap(fs *fs.Fs, bn uint64) common.Bnum {
	if bn >= ip.nblk {
		panic("Bmap")
	}
	if bn < common.NDIRECT {
		return ip.blks[bn]
	}
	b := fs.ReadBlock(ip.blks[common.INDIRECT])
	return indGet(b, bn-common.NDIRECT)
}

// HasIndirect reports whether the indirect index block is allocated.
func (ip *Inode) HasIndirect() bool {
	return ip.nblk > common.NDIRECT
}

// GrowByOneBlock maps the next logical block to a fresh, zeroed data block
// and persists the inode. Size is left to the caller. When the new block is
// the first one past the direct blocks, the indirect block is allocated
// first; if the data block then can't be allocated, the indirect block is
// given back and nothing on disk changes.
func (ip *Inode) GrowByOneBlock(fs *fs.Fs) (common.Bnum, error) {
	lbn := ip.nblk
	if lbn >= common.MAXBLOCKS {
		return 0, common.ErrNoSpace
	}
	if lbn < common.NDIRECT {
		bn, err := fs.AllocBlock()
		if err != nil {
			return 0, err
		}
		ip.blks[lbn] = bn
	} else {
		var fresh = false
		if lbn == common.NDIRECT {
			ind, err := fs.AllocBlock()
			if err != nil {
				return 0, err
			}
			ip.blks[common.INDIRECT] = ind
			fresh = true
		}
		bn, err := fs.AllocBlock()
		if err != nil {
			if fresh {
				util.DPrintf(1, "GrowByOneBlock: release indirect %d\n", ip.blks[common.INDIRECT])
				fs.FreeBlock(ip.blks[common.INDIRECT])
				ip.blks[common.INDIRECT] = 0
			}
			return 0, err
		}
		b := fs.ReadBlock(ip.blks[common.INDIRECT])
		indPut(b, lbn-common.NDIRECT, bn)
		fs.WriteBlock(ip.blks[common.INDIRECT], b)
	}
	ip.nblk = lbn + 1
	ip.WriteInode(fs)
	util.DPrintf(1, "GrowByOneBlock # %d: lbn %d\n", ip.Inum, lbn)
	return ip.Bmap(fs, lbn), nil
}

// ShrinkBlocks frees all mapped blocks from logical block keep on, and the
// indirect block once no block past the direct ones remains. The inode is
// persisted; adjusting Size is up to the caller.
func (ip *Inode) ShrinkBlocks(fs *fs.Fs, keep uint64) {
	if keep >= ip.nblk {
		ip.WriteInode(fs)
		return
	}
	util.DPrintf(1, "ShrinkBlocks # %d: from %d to %d\n", ip.Inum, ip.nblk, keep)
	if ip.nblk > common.NDIRECT {
		b := fs.ReadBlock(ip.blks[common.INDIRECT])
		for lbn := ip.nblk; lbn > keep && lbn > common.NDIRECT; lbn-- {
			i := lbn - 1 - common.NDIRECT
			fs.FreeBlock(indGet(b, i))
			indPut(b, i, 0)
		}
		if keep <= common.NDIRECT {
			fs.FreeBlock(ip.blks[common.INDIRECT])
			ip.blks[common.INDIRECT] = 0
		} else {
			fs.WriteBlock(ip.blks[common.INDIRECT], b)
		}
	}
	for lbn := util.Min(ip.nblk, common.NDIRECT); lbn > keep; lbn-- {
		fs.FreeBlock(ip.blks[lbn-1])
		ip.blks[lbn-1] = 0
	}
	ip.nblk = keep
	ip.WriteInode(fs)
}

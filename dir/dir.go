package dir

import (
	"bytes"
	"strings"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/fs"
	"github.com/mit-pdos/go-blockfs/inode"
)

// A directory is an inode whose data is a dense array of DIRENTSZ-byte
// records. Records are appended at the end, and a deleted record is filled
// with the last one, so the array never has holes.

type DirEnt struct {
	Inum common.Inum
	Name string // <= MAXNAMELEN
}

func IllegalName(name string) bool {
	return name == "." || name == ".."
}

// ValidName checks that name can be stored in a directory entry.
func ValidName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return common.ErrInval
	}
	if uint64(len(name)) > common.MAXNAMELEN {
		return common.ErrNameTooLong
	}
	return nil
}

// Caller must ensure de.Name fits
func encodeDirEnt(de *DirEnt) []byte {
	enc := marshal.NewEnc(common.DIRENTSZ)
	enc.PutInt32(uint32(de.Inum))
	name := make([]byte, common.MAXNAMELEN+1)
	copy(name, de.Name)
	enc.PutBytes(name)
	return enc.Finish()
}

func decodeDirEnt(d []byte) *DirEnt {
	dec := marshal.NewDec(d)
	de := &DirEnt{}
	de.Inum = common.Inum(dec.GetInt32())
	name := dec.GetBytes(common.MAXNAMELEN + 1)
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	de.Name = string(name)
	return de
}

// slot is the on-disk position of a record: a data block and the byte
// offset of the record inside it.
type slot struct {
	blkno common.Bnum
	off   uint64
}

func nEntries(dip *inode.Inode) uint64 {
	return dip.Size / common.DIRENTSZ
}

func locate(fs *fs.Fs, dip *inode.Inode, idx uint64) slot {
	return slot{
		blkno: dip.Bmap(fs, idx/common.DIRENTBLK),
		off:   (idx % common.DIRENTBLK) * common.DIRENTSZ,
	}
}

// scan calls f on each used record in order, reading every directory block
// once. Blocks past the direct ones are found through the indirect block.
// scan stops when f returns false.
func scan(fs *fs.Fs, dip *inode.Inode, f func(idx uint64, s slot, de *DirEnt) bool) {
	n := nEntries(dip)
	var idx uint64 = 0
	for lbn := uint64(0); idx < n; lbn++ {
		bn := dip.Bmap(fs, lbn)
		blk := fs.ReadBlock(bn)
		for i := uint64(0); i < common.DIRENTBLK && idx < n; i++ {
			off := i * common.DIRENTSZ
			de := decodeDirEnt(blk[off : off+common.DIRENTSZ])
			if !f(idx, slot{blkno: bn, off: off}, de) {
				return
			}
			idx++
		}
	}
}

// Lookup returns the inode of the first entry named name.
func Lookup(fs *fs.Fs, dip *inode.Inode, name string) (common.Inum, error) {
	if !dip.IsDir() {
		return 0, common.ErrNotDir
	}
	var inum common.Inum
	var found = false
	scan(fs, dip, func(idx uint64, s slot, de *DirEnt) bool {
		if de.Name == name {
			inum = de.Inum
			found = true
			return false
		}
		return true
	})
	if !found {
		return 0, common.ErrNotFound
	}
	return inum, nil
}

// AddEntry appends a record for (inum, name). It does not check for an
// existing entry with the same name.
func AddEntry(fs *fs.Fs, dip *inode.Inode, inum common.Inum, name string) error {
	if !dip.IsDir() {
		return common.ErrNotDir
	}
	if err := ValidName(name); err != nil {
		return err
	}
	ent := encodeDirEnt(&DirEnt{Inum: inum, Name: name})
	idx := nEntries(dip)
	util.DPrintf(5, "AddEntry # %v: %v -> %v idx %d\n", dip.Inum, name, inum, idx)
	if idx%common.DIRENTBLK == 0 {
		bn, err := dip.GrowByOneBlock(fs)
		if err != nil {
			return err
		}
		blk := make(disk.Block, disk.BlockSize)
		copy(blk, ent)
		fs.WriteBlock(bn, blk)
	} else {
		s := locate(fs, dip, idx)
		blk := fs.ReadBlock(s.blkno)
		copy(blk[s.off:s.off+common.DIRENTSZ], ent)
		fs.WriteBlock(s.blkno, blk)
	}
	dip.Size = dip.Size + common.DIRENTSZ
	dip.WriteInode(fs)
	return nil
}

// swapLast fills the record at target with the last record, at last, and
// drops the last record. If last was the only record in its block, the
// block is freed, together with the indirect block when nothing else is
// mapped through it.
func swapLast(fs *fs.Fs, dip *inode.Inode, target slot, last slot) {
	if target != last {
		lblk := fs.ReadBlock(last.blkno)
		var tblk = lblk
		if target.blkno != last.blkno {
			tblk = fs.ReadBlock(target.blkno)
		}
		copy(tblk[target.off:target.off+common.DIRENTSZ], lblk[last.off:last.off+common.DIRENTSZ])
		fs.WriteBlock(target.blkno, tblk)
	}
	dip.Size = dip.Size - common.DIRENTSZ
	if last.off == 0 {
		dip.ShrinkBlocks(fs, dip.NumBlocks())
	} else {
		dip.WriteInode(fs)
	}
}

// Delete removes the first entry named name. The order of the remaining
// entries is not preserved.
func Delete(fs *fs.Fs, dip *inode.Inode, name string) error {
	if !dip.IsDir() {
		return common.ErrNotDir
	}
	n := nEntries(dip)
	if n == 0 {
		return common.ErrNotFound
	}
	last := locate(fs, dip, n-1)
	var target slot
	var found = false
	scan(fs, dip, func(idx uint64, s slot, de *DirEnt) bool {
		if de.Name == name {
			target = s
			found = true
			return false
		}
		return true
	})
	if !found {
		return common.ErrNotFound
	}
	util.DPrintf(5, "Delete # %v: %v at %v last %v\n", dip.Inum, name, target, last)
	swapLast(fs, dip, target, last)
	return nil
}

// Entries returns a copy of all records, in on-disk order.
func Entries(fs *fs.Fs, dip *inode.Inode) []DirEnt {
	ents := make([]DirEnt, 0, nEntries(dip))
	scan(fs, dip, func(idx uint64, s slot, de *DirEnt) bool {
		ents = append(ents, *de)
		return true
	})
	return ents
}

func InitDir(fs *fs.Fs, dip *inode.Inode, parent common.Inum) error {
	if err := AddEntry(fs, dip, dip.Inum, "."); err != nil {
		return err
	}
	return AddEntry(fs, dip, parent, "..")
}

func MkRootDir(fs *fs.Fs, dip *inode.Inode) error {
	return InitDir(fs, dip, dip.Inum)
}

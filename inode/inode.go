package inode

import (
	"fmt"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/fs"
)

type Inode struct {
	// in-memory info:
	Inum common.Inum
	nblk uint64 // data blocks mapped, may run ahead of Size during a write

	// the on-disk inode:
	Kind  common.Kind
	Nlink uint32
	Size  uint64
	blks  []common.Bnum
}

func (ip *Inode) String() string {
	return fmt.Sprintf("# %d k %v n %d sz %d nblk %d %v", ip.Inum, ip.Kind, ip.Nlink, ip.Size, ip.nblk, ip.blks)
}

func (ip *Inode) initInode(kind common.Kind) {
	util.DPrintf(1, "initInode: inode # %d\n", ip.Inum)
	ip.Kind = kind
	ip.Nlink = 1
	ip.Size = 0
	ip.nblk = 0
	ip.blks = make([]common.Bnum, common.NBLKINO)
}

func (ip *Inode) Encode() []byte {
	enc := marshal.NewEnc(common.INODESZ)
	enc.PutInt(ip.Size)
	enc.PutInt32(uint32(ip.Kind))
	enc.PutInt32(ip.Nlink)
	for _, bn := range ip.blks {
		enc.PutInt32(uint32(bn))
	}
	return enc.Finish()
}

func Decode(b []byte, inum common.Inum) *Inode {
	ip := &Inode{Inum: inum}
	dec := marshal.NewDec(b)
	ip.Size = dec.GetInt()
	ip.Kind = common.Kind(dec.GetInt32())
	ip.Nlink = dec.GetInt32()
	ip.blks = make([]common.Bnum, common.NBLKINO)
	for i := range ip.blks {
		ip.blks[i] = common.Bnum(dec.GetInt32())
	}
	ip.nblk = ip.NumBlocks()
	return ip
}

func ReadInode(fs *fs.Fs, inum common.Inum) *Inode {
	if inum >= fs.Super.NInode {
		panic("ReadInode")
	}
	blkno, off := fs.Super.Inum2Addr(inum)
	blk := fs.Disk().Read(blkno)
	return Decode(blk[off:off+common.INODESZ], inum)
}

// WriteInode re-reads the inode table block, since other inodes share it,
// and writes it back with this inode's slot replaced.
func (ip *Inode) WriteInode(fs *fs.Fs) {
	if ip.Inum >= fs.Super.NInode {
		panic("WriteInode")
	}
	blkno, off := fs.Super.Inum2Addr(ip.Inum)
	blk := fs.Disk().Read(blkno)
	copy(blk[off:off+common.INODESZ], ip.Encode())
	fs.Disk().Write(blkno, blk)
	util.DPrintf(1, "WriteInode %v\n", ip)
}

// InitRoot marks the root inode allocated and writes it as an empty
// directory. Only mkfs calls this.
func InitRoot(fs *fs.Fs) *Inode {
	fs.Ialloc.Set(common.ROOTINUM, true)
	ip := &Inode{Inum: common.ROOTINUM}
	ip.initInode(common.KindDir)
	ip.WriteInode(fs)
	return ip
}

func AllocInode(fs *fs.Fs, kind common.Kind) (*Inode, error) {
	inum, err := fs.Ialloc.AllocNum()
	if err != nil {
		return nil, err
	}
	ip := &Inode{Inum: inum}
	ip.initInode(kind)
	ip.WriteInode(fs)
	util.DPrintf(1, "AllocInode -> # %v\n", inum)
	return ip, nil
}

// FreeInode releases the inode's data blocks, its indirect block if any,
// and the inode number itself.
func (ip *Inode) FreeInode(fs *fs.Fs) {
	if !fs.Ialloc.Test(ip.Inum) {
		panic("FreeInode")
	}
	util.DPrintf(1, "FreeInode %v\n", ip)
	ip.Size = 0
	ip.ShrinkBlocks(fs, 0)
	fs.Ialloc.FreeNum(ip.Inum)
}

func (ip *Inode) IsDir() bool {
	return ip.Kind == common.KindDir
}

// NumBlocks is the number of data blocks that Size maps onto.
func (ip *Inode) NumBlocks() uint64 {
	return util.RoundUp(ip.Size, disk.BlockSize)
}

// StatBlocks counts the data blocks plus the indirect block, if present.
func (ip *Inode) StatBlocks() uint64 {
	n := ip.NumBlocks()
	if n > common.NDIRECT {
		n++
	}
	return n
}

func (ip *Inode) IncLink(fs *fs.Fs) {
	ip.Nlink = ip.Nlink + 1
	ip.WriteInode(fs)
}

func (ip *Inode) DecLink(fs *fs.Fs) {
	if ip.Nlink == 0 {
		panic("DecLink")
	}
	ip.Nlink = ip.Nlink - 1
	ip.WriteInode(fs)
}

// Returns the data read; short if the read reaches the end of the file.
func (ip *Inode) Read(fs *fs.Fs, offset uint64, bytesToRead uint64) []byte {
	if offset >= ip.Size {
		return nil
	}
	var count uint64 = bytesToRead
	if count > ip.Size-offset {
		count = ip.Size - offset
	}
	util.DPrintf(5, "Read: off %d cnt %d\n", offset, count)
	data := make([]byte, 0, count)
	var n uint64 = 0
	var off = offset
	for boff := off / disk.BlockSize; n < count; boff++ {
		byteoff := off % disk.BlockSize
		nbytes := util.Min(disk.BlockSize-byteoff, count-n)
		buf := fs.ReadBlock(ip.Bmap(fs, boff))
		data = append(data, buf[byteoff:byteoff+nbytes]...)
		n += nbytes
		off += nbytes
	}
	return data
}

// Write grows the file one block at a time until it covers offset+count
// and then writes each touched block. If the disk fills up, the bytes that
// fit are written, blocks past the new size are given back, and the short
// count is returned with ErrNoSpace.
func (ip *Inode) Write(fs *fs.Fs, offset uint64, dataBuf []byte) (uint64, error) {
	var count = uint64(len(dataBuf))
	util.DPrintf(5, "Write: off %d cnt %d\n", offset, count)
	if count == 0 {
		return 0, nil
	}
	if offset+count < offset || offset+count > common.MaxFileSize() {
		return 0, common.ErrNoSpace
	}

	var err error
	need := util.RoundUp(offset+count, disk.BlockSize)
	for ip.nblk < need {
		if _, err = ip.GrowByOneBlock(fs); err != nil {
			break
		}
	}
	avail := ip.nblk * disk.BlockSize
	if offset+count > avail {
		if avail > offset {
			count = avail - offset
		} else {
			count = 0
		}
	}

	var cnt uint64 = 0
	var off = offset
	var data = dataBuf[:count]
	for boff := off / disk.BlockSize; cnt < count; boff++ {
		blkno := ip.Bmap(fs, boff)
		byteoff := off % disk.BlockSize
		nbytes := util.Min(disk.BlockSize-byteoff, count-cnt)
		if byteoff == 0 && nbytes == disk.BlockSize { // block overwrite?
			fs.WriteBlock(blkno, data[:nbytes])
		} else {
			buffer := fs.ReadBlock(blkno)
			copy(buffer[byteoff:byteoff+nbytes], data[:nbytes])
			fs.WriteBlock(blkno, buffer)
		}
		data = data[nbytes:]
		off += nbytes
		cnt += nbytes
	}

	if offset+cnt > ip.Size && cnt > 0 {
		ip.Size = offset + cnt
	}
	if ip.nblk > ip.NumBlocks() {
		ip.ShrinkBlocks(fs, ip.NumBlocks())
	} else {
		ip.WriteInode(fs)
	}
	util.DPrintf(1, "Write: off %d cnt %d size %d\n", offset, cnt, ip.Size)
	return cnt, err
}

package inode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/fs"
)

func mkData(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

// mkFs formats a volume with ndata data blocks (and 64 inodes).
func mkFs(t *testing.T, ndata uint64) *fs.Fs {
	d := disk.NewMemDisk(common.INODESTART + 1 + ndata + 1)
	fsys, err := fs.Format(d)
	require.NoError(t, err)
	require.Equal(t, ndata, fsys.Super.NData)
	return fsys
}

func TestEncodeDecode(t *testing.T) {
	ip := &Inode{Inum: 3}
	ip.initInode(common.KindFile)
	ip.Size = 12345
	ip.Nlink = 2
	ip.blks[0] = 7
	ip.blks[common.INDIRECT] = 9
	b := ip.Encode()
	assert.Equal(t, common.INODESZ, uint64(len(b)))
	ip2 := Decode(b, 3)
	assert.Equal(t, ip.Size, ip2.Size)
	assert.Equal(t, ip.Kind, ip2.Kind)
	assert.Equal(t, ip.Nlink, ip2.Nlink)
	assert.Equal(t, ip.blks, ip2.blks)
	assert.Equal(t, uint64(4), ip2.nblk)
}

func TestAllocInode(t *testing.T) {
	assert := assert.New(t)
	fsys := mkFs(t, 100)
	InitRoot(fsys)
	ip, err := AllocInode(fsys, common.KindFile)
	require.NoError(t, err)
	assert.NotEqual(common.ROOTINUM, ip.Inum)
	assert.Equal(uint64(2), fsys.Super.InodeCount)

	ip2 := ReadInode(fsys, ip.Inum)
	assert.Equal(common.KindFile, ip2.Kind)
	assert.Equal(uint32(1), ip2.Nlink)

	ip2.IncLink(fsys)
	assert.Equal(uint32(2), ReadInode(fsys, ip.Inum).Nlink)
	ip2.DecLink(fsys)
	ip2.DecLink(fsys)
	assert.Panics(func() { ip2.DecLink(fsys) })

	ip2.FreeInode(fsys)
	assert.False(fsys.Ialloc.Test(ip.Inum))
	assert.Panics(func() { ip2.FreeInode(fsys) })
}

func TestInodeExhaust(t *testing.T) {
	fsys := mkFs(t, 10)
	n := fsys.Super.NInode
	for i := uint64(0); i < n; i++ {
		_, err := AllocInode(fsys, common.KindFile)
		require.NoError(t, err)
	}
	_, err := AllocInode(fsys, common.KindFile)
	assert.Equal(t, common.ErrNoSpace, err)
	assert.Equal(t, n, fsys.Super.InodeCount)
}

func TestReadWrite(t *testing.T) {
	assert := assert.New(t)
	fsys := mkFs(t, 100)
	ip, err := AllocInode(fsys, common.KindFile)
	require.NoError(t, err)

	data := mkData(3*disk.BlockSize + 100)
	n, err := ip.Write(fsys, 0, data)
	require.NoError(t, err)
	assert.Equal(uint64(len(data)), n)
	assert.Equal(uint64(len(data)), ip.Size)
	assert.Equal(uint64(4), fsys.Super.DataCount)

	ip = ReadInode(fsys, ip.Inum)
	assert.Equal(data, ip.Read(fsys, 0, uint64(len(data))))
	assert.Equal(data[100:200], ip.Read(fsys, 100, 100))
	assert.Equal(data[len(data)-10:], ip.Read(fsys, uint64(len(data)-10), 100), "short read at eof")
	assert.Empty(ip.Read(fsys, uint64(len(data)), 10))

	// overwrite across a block boundary
	patch := []byte("hello, world")
	_, err = ip.Write(fsys, disk.BlockSize-5, patch)
	require.NoError(t, err)
	copy(data[disk.BlockSize-5:], patch)
	assert.Equal(data, ip.Read(fsys, 0, uint64(len(data))))
	assert.Equal(uint64(4), fsys.Super.DataCount)
}

func TestWriteHole(t *testing.T) {
	fsys := mkFs(t, 100)
	ip, err := AllocInode(fsys, common.KindFile)
	require.NoError(t, err)
	_, err = ip.Write(fsys, 2*disk.BlockSize, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 2*disk.BlockSize+1, ip.Size)
	got := ip.Read(fsys, 0, ip.Size)
	assert.Equal(t, make([]byte, 2*disk.BlockSize), got[:2*disk.BlockSize])
	assert.Equal(t, byte('x'), got[2*disk.BlockSize])
}

func TestIndirect(t *testing.T) {
	assert := assert.New(t)
	fsys := mkFs(t, 100)
	ip, err := AllocInode(fsys, common.KindFile)
	require.NoError(t, err)

	data := mkData(common.NDIRECT * disk.BlockSize)
	_, err = ip.Write(fsys, 0, data)
	require.NoError(t, err)
	assert.False(ip.HasIndirect())
	assert.Equal(common.NDIRECT, fsys.Super.DataCount)

	_, err = ip.Write(fsys, ip.Size, []byte("more"))
	require.NoError(t, err)
	assert.True(ip.HasIndirect())
	assert.Equal(common.NDIRECT+2, fsys.Super.DataCount)
	assert.Equal(common.NDIRECT+2, ip.StatBlocks())

	ip = ReadInode(fsys, ip.Inum)
	assert.Equal(append(data, "more"...), ip.Read(fsys, 0, ip.Size))

	ip.FreeInode(fsys)
	assert.Equal(uint64(0), fsys.Super.DataCount)
	assert.Equal(uint64(0), fsys.Balloc.Count())
}

func TestIndirectRollback(t *testing.T) {
	assert := assert.New(t)
	fsys := mkFs(t, common.NDIRECT+1)
	ip, err := AllocInode(fsys, common.KindFile)
	require.NoError(t, err)
	_, err = ip.Write(fsys, 0, mkData(common.NDIRECT*disk.BlockSize))
	require.NoError(t, err)

	// the indirect block fits, its first data block does not
	n, err := ip.Write(fsys, ip.Size, []byte("x"))
	assert.Equal(common.ErrNoSpace, err)
	assert.Equal(uint64(0), n)
	assert.False(ip.HasIndirect())
	assert.Equal(common.NDIRECT, fsys.Super.DataCount)
	assert.Equal(common.NDIRECT*disk.BlockSize, ReadInode(fsys, ip.Inum).Size)
}

func TestShortWrite(t *testing.T) {
	assert := assert.New(t)
	fsys := mkFs(t, 14)
	ip, err := AllocInode(fsys, common.KindFile)
	require.NoError(t, err)

	data := mkData(20 * disk.BlockSize)
	n, err := ip.Write(fsys, 0, data)
	assert.Equal(common.ErrNoSpace, err)
	assert.Equal(13*disk.BlockSize, n)
	assert.Equal(13*disk.BlockSize, ip.Size)
	assert.Equal(uint64(14), fsys.Super.DataCount)

	ip = ReadInode(fsys, ip.Inum)
	assert.Equal(data[:n], ip.Read(fsys, 0, ip.Size))
	ip.FreeInode(fsys)
	assert.Equal(uint64(0), fsys.Balloc.Count())
}

func TestTooLarge(t *testing.T) {
	fsys := mkFs(t, 10)
	ip, err := AllocInode(fsys, common.KindFile)
	require.NoError(t, err)
	_, err = ip.Write(fsys, common.MaxFileSize(), []byte("x"))
	assert.Equal(t, common.ErrNoSpace, err)
	_, err = ip.Write(fsys, ^uint64(0), []byte("xy"))
	assert.Equal(t, common.ErrNoSpace, err)
	assert.Equal(t, uint64(0), fsys.Super.DataCount)
}

func TestShrink(t *testing.T) {
	fsys := mkFs(t, 100)
	ip, err := AllocInode(fsys, common.KindFile)
	require.NoError(t, err)
	_, err = ip.Write(fsys, 0, mkData(15*disk.BlockSize))
	require.NoError(t, err)
	assert.Equal(t, uint64(16), fsys.Super.DataCount)

	ip.Size = 12 * disk.BlockSize
	ip.ShrinkBlocks(fsys, ip.NumBlocks())
	assert.Equal(t, uint64(13), fsys.Super.DataCount)
	ip.Size = 5 * disk.BlockSize
	ip.ShrinkBlocks(fsys, ip.NumBlocks())
	assert.Equal(t, uint64(5), fsys.Super.DataCount)
	assert.False(t, ReadInode(fsys, ip.Inum).HasIndirect())
}

package dir

import (
	"fmt"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/fs"
	"github.com/mit-pdos/go-blockfs/inode"
)

func mkRoot(t *testing.T, sz uint64) (*fs.Fs, *inode.Inode) {
	fsys, err := fs.Format(disk.NewMemDisk(sz))
	require.NoError(t, err)
	root := inode.InitRoot(fsys)
	require.NoError(t, MkRootDir(fsys, root))
	return fsys, root
}

func TestDirEntCodec(t *testing.T) {
	de := &DirEnt{Inum: 42, Name: "abcdefghijklmnopqrstuvwxyz012345"}
	b := encodeDirEnt(de)
	assert.Equal(t, common.DIRENTSZ, uint64(len(b)))
	assert.Equal(t, de, decodeDirEnt(b))
}

func TestValidName(t *testing.T) {
	assert.NoError(t, ValidName("a"))
	assert.Equal(t, common.ErrInval, ValidName(""))
	assert.Equal(t, common.ErrInval, ValidName("a/b"))
	assert.Equal(t, common.ErrInval, ValidName("a\x00"))
	assert.Equal(t, common.ErrNameTooLong, ValidName("abcdefghijklmnopqrstuvwxyz0123456"))
}

func TestRootDir(t *testing.T) {
	fsys, root := mkRoot(t, 1000)
	ents := Entries(fsys, root)
	if diff := deep.Equal(ents, []DirEnt{{0, "."}, {0, ".."}}); diff != nil {
		t.Error(diff)
	}
	assert.Equal(t, 2*common.DIRENTSZ, root.Size)
	assert.Equal(t, uint64(1), fsys.Super.DataCount)
}

func TestAddLookupDelete(t *testing.T) {
	assert := assert.New(t)
	fsys, root := mkRoot(t, 1000)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, AddEntry(fsys, root, i, fmt.Sprintf("f%d", i)))
	}
	inum, err := Lookup(fsys, root, "f3")
	require.NoError(t, err)
	assert.Equal(uint64(3), inum)

	// deleting moves the last record into the hole
	require.NoError(t, Delete(fsys, root, "f2"))
	_, err = Lookup(fsys, root, "f2")
	assert.Equal(common.ErrNotFound, err)
	want := []DirEnt{{0, "."}, {0, ".."}, {1, "f1"}, {5, "f5"}, {3, "f3"}, {4, "f4"}}
	if diff := deep.Equal(Entries(fsys, root), want); diff != nil {
		t.Error(diff)
	}
	assert.Equal(uint64(len(want))*common.DIRENTSZ, root.Size)
	assert.Equal(common.ErrNotFound, Delete(fsys, root, "f2"))

	// deleting the last record
	require.NoError(t, Delete(fsys, root, "f4"))
	for _, name := range []string{"f1", "f3", "f5"} {
		_, err := Lookup(fsys, root, name)
		assert.NoError(err, name)
	}
}

func TestNotDir(t *testing.T) {
	fsys, _ := mkRoot(t, 1000)
	ip, err := inode.AllocInode(fsys, common.KindFile)
	require.NoError(t, err)
	_, err = Lookup(fsys, ip, "x")
	assert.Equal(t, common.ErrNotDir, err)
	assert.Equal(t, common.ErrNotDir, AddEntry(fsys, ip, 1, "x"))
	assert.Equal(t, common.ErrNotDir, Delete(fsys, ip, "x"))
}

func TestDirGrowShrink(t *testing.T) {
	assert := assert.New(t)
	fsys, root := mkRoot(t, 1000)

	// fill the direct blocks and spill into the indirect block
	n := common.NDIRECT*common.DIRENTBLK + 3 - 2
	for i := uint64(0); i < n; i++ {
		require.NoError(t, AddEntry(fsys, root, i%fsys.Super.NInode, fmt.Sprintf("e%d", i)))
	}
	assert.True(root.HasIndirect())
	assert.Equal(common.NDIRECT+2, fsys.Super.DataCount)
	inum, err := Lookup(fsys, root, fmt.Sprintf("e%d", n-1))
	require.NoError(t, err)
	assert.Equal((n-1)%fsys.Super.NInode, inum)

	// removing the records in the first indirect-mapped block frees it and
	// the indirect block
	for i := uint64(0); i < 3; i++ {
		require.NoError(t, Delete(fsys, root, fmt.Sprintf("e%d", i)))
	}
	assert.False(root.HasIndirect())
	assert.Equal(common.NDIRECT, fsys.Super.DataCount)
	assert.Equal(common.NDIRECT*disk.BlockSize, root.Size)

	root = inode.ReadInode(fsys, root.Inum)
	assert.Len(Entries(fsys, root), int(common.NDIRECT*common.DIRENTBLK))
}

func TestAddEntryNoSpace(t *testing.T) {
	// 64 inodes, one data block used by the root
	fsys, root := mkRoot(t, 7)
	require.Equal(t, uint64(1), fsys.Super.NData)
	for i := uint64(2); i < common.DIRENTBLK; i++ {
		require.NoError(t, AddEntry(fsys, root, 1, fmt.Sprintf("e%d", i)))
	}
	assert.Equal(t, common.ErrNoSpace, AddEntry(fsys, root, 1, "full"))
	assert.Equal(t, disk.BlockSize, root.Size)
	assert.Len(t, Entries(fsys, root), int(common.DIRENTBLK))
}

func TestAddEntryIndirectNoSpace(t *testing.T) {
	assert := assert.New(t)
	// 64 inodes and exactly NDIRECT+1 data blocks
	fsys, root := mkRoot(t, common.INODESTART+1+common.NDIRECT+1+1)
	require.Equal(t, common.NDIRECT+1, fsys.Super.NData)
	n := common.NDIRECT*common.DIRENTBLK - 2
	for i := uint64(0); i < n; i++ {
		require.NoError(t, AddEntry(fsys, root, 1, fmt.Sprintf("e%d", i)))
	}
	require.Equal(t, common.NDIRECT, fsys.Super.DataCount)

	// the indirect block takes the last free block, its first data block
	// does not fit, and the indirect block is given back
	assert.Equal(common.ErrNoSpace, AddEntry(fsys, root, 1, "spill"))
	assert.Equal(common.NDIRECT, fsys.Super.DataCount)
	assert.Equal(common.NDIRECT, fsys.Balloc.Count())
	assert.False(root.HasIndirect())
	assert.Equal(common.NDIRECT*disk.BlockSize, root.Size)

	root = inode.ReadInode(fsys, root.Inum)
	assert.False(root.HasIndirect())
	_, err := Lookup(fsys, root, "spill")
	assert.Equal(common.ErrNotFound, err)
	assert.Len(Entries(fsys, root), int(common.NDIRECT*common.DIRENTBLK))
}

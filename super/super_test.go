package super

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/common"
)

func TestGeometry(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(1000)
	fs, err := MkFsSuper(d)
	require.NoError(t, err)
	assert.Equal(uint64(1000), fs.Size)
	assert.Equal(uint64(256), fs.NInode)
	assert.Equal(common.INODESTART+4, fs.DataStart)
	assert.Equal(uint64(1000-1)-fs.DataStart, fs.NData)
	assert.Equal(uint64(999), fs.Mirror())

	// small volumes still get a full inode block
	fs, err = MkFsSuper(disk.NewMemDisk(20))
	require.NoError(t, err)
	assert.Equal(common.INODEBLK, fs.NInode)

	// large volumes are capped by what one bitmap block can track
	fs, err = MkFsSuper(disk.NewMemDisk(200 * 1000))
	require.NoError(t, err)
	assert.Equal(common.NBITBLOCK, fs.NInode)
	assert.Equal(common.NBITBLOCK, fs.NData)
}

func TestTooSmall(t *testing.T) {
	_, err := MkFsSuper(disk.NewMemDisk(6))
	assert.Equal(t, common.ErrInval, err)
}

func TestEncodeDecode(t *testing.T) {
	d := disk.NewMemDisk(500)
	fs, err := MkFsSuper(d)
	require.NoError(t, err)
	fs.InodeCount = 3
	fs.DataCount = 7
	fs2 := Decode(d, fs.Encode())
	require.NotNil(t, fs2)
	assert.Equal(t, fs, fs2)

	assert.Nil(t, Decode(d, make(disk.Block, disk.BlockSize)), "zero block")
	assert.Nil(t, Decode(disk.NewMemDisk(100), fs.Encode()), "volume larger than disk")
}

func TestReadSuperRepair(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(300)
	fs, err := MkFsSuper(d)
	require.NoError(t, err)
	fs.InodeCount = 1
	fs.WriteSuper()
	good := fs.Encode()

	// corrupt primary
	d.Write(common.SUPERBLOCK, make(disk.Block, disk.BlockSize))
	fs2 := ReadSuper(d)
	require.NotNil(t, fs2)
	assert.Equal(fs.UUID, fs2.UUID)
	assert.Equal(good, d.Read(common.SUPERBLOCK), "primary repaired")

	// corrupt mirror
	d.Write(fs.Mirror(), make(disk.Block, disk.BlockSize))
	fs2 = ReadSuper(d)
	require.NotNil(t, fs2)
	assert.Equal(good, d.Read(fs.Mirror()), "mirror repaired")

	// both gone
	d.Write(common.SUPERBLOCK, make(disk.Block, disk.BlockSize))
	d.Write(fs.Mirror(), make(disk.Block, disk.BlockSize))
	assert.Nil(ReadSuper(d))
}

func TestAdjust(t *testing.T) {
	d := disk.NewMemDisk(300)
	fs, err := MkFsSuper(d)
	require.NoError(t, err)
	fs.Adjust(fs.DataBitmap, true)
	fs.Adjust(fs.DataBitmap, true)
	fs.Adjust(fs.InodeBitmap, true)
	fs.Adjust(fs.DataBitmap, false)
	fs2 := ReadSuper(d)
	require.NotNil(t, fs2)
	assert.Equal(t, uint64(1), fs2.InodeCount)
	assert.Equal(t, uint64(1), fs2.DataCount)
	assert.Panics(t, func() { fs.Adjust(common.SUPERBLOCK, true) })
}

func TestRegion(t *testing.T) {
	d := disk.NewMemDisk(300)
	fs, err := MkFsSuper(d)
	require.NoError(t, err)
	assert.Equal(t, RegionReserved, fs.Region(0))
	assert.Equal(t, RegionSuper, fs.Region(common.SUPERBLOCK))
	assert.Equal(t, RegionSuper, fs.Region(fs.Mirror()))
	assert.Equal(t, RegionBitmap, fs.Region(fs.DataBitmap))
	assert.Equal(t, RegionInode, fs.Region(fs.InodeStart))
	assert.Equal(t, RegionData, fs.Region(fs.Data2Addr(0)))
	assert.Equal(t, len(fs.RegionNames()), RegionData+1)
}

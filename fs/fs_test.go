package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/common"
)

func mkData(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

func TestFormatLoad(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(1000)
	assert.Nil(Load(d), "blank disk")

	fs, err := Format(d)
	require.NoError(t, err)
	_, err = fs.Ialloc.AllocNum()
	require.NoError(t, err)

	fs2 := Load(d)
	require.NotNil(t, fs2)
	assert.Equal(fs.Super.UUID, fs2.Super.UUID)
	assert.Equal(uint64(1), fs2.Super.InodeCount)
	assert.Equal(uint64(1), fs2.Ialloc.Count())
	assert.Equal(uint64(0), fs2.Balloc.Count())
}

func TestFormatTooSmall(t *testing.T) {
	_, err := Format(disk.NewMemDisk(3))
	assert.Equal(t, common.ErrInval, err)
}

func TestBlocks(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(1000)
	fs, err := Format(d)
	require.NoError(t, err)

	bn, err := fs.AllocBlock()
	require.NoError(t, err)
	data := mkData(disk.BlockSize)
	fs.WriteBlock(bn, data)
	assert.Equal(data, d.Read(fs.Super.DataStart+bn))
	assert.Equal(data, fs.ReadBlock(bn))
	fs.FreeBlock(bn)

	// a reallocated block comes back zeroed
	for {
		bn2, err := fs.AllocBlock()
		require.NoError(t, err)
		if bn2 == bn {
			break
		}
	}
	assert.Equal(make([]byte, disk.BlockSize), fs.ReadBlock(bn))
	assert.Panics(func() { fs.ReadBlock(fs.Super.NData) })
}

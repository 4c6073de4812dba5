package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrno(t *testing.T) {
	assert := assert.New(t)
	var err error = ErrNotFound
	assert.Equal("no such file or directory", err.Error())
	assert.True(errors.Is(fmt.Errorf("open: %w", err), ErrNotFound))
	assert.Equal(-1, Code(err))
	assert.Equal(0, Code(nil))
	assert.Equal(-4, Code(fmt.Errorf("write: %w", ErrNoSpace)))
	assert.Equal(ErrInval.Code(), Code(errors.New("other")))
	assert.Equal("unknown error", Errno(-100).Error())
}

func TestMaxFileSize(t *testing.T) {
	assert.Equal(t, uint64((11+2048)*4096), MaxFileSize())
	assert.Equal(t, "directory", KindDir.String())
	assert.Equal(t, "file", KindFile.String())
}

package blockfs

import (
	"io"
	"time"

	"github.com/mit-pdos/go-blockfs/util/stats"
)

const (
	OP_MKFS = iota
	OP_OPEN
	OP_CLOSE
	OP_READ
	OP_WRITE
	OP_LSEEK
	OP_MKDIR
	OP_RMDIR
	OP_CD
	OP_LINK
	OP_UNLINK
	OP_STAT
	OP_READDIR
	NUM_OPS
)

var opNames = []string{
	"MKFS",
	"OPEN",
	"CLOSE",
	"READ",
	"WRITE",
	"LSEEK",
	"MKDIR",
	"RMDIR",
	"CD",
	"LINK",
	"UNLINK",
	"STAT",
	"READDIR",
}

func (f *Fs) recordOp(op int, start time.Time) {
	f.stats[op].Record(start)
}

func (f *Fs) WriteOpStats(w io.Writer) {
	stats.WriteTable(opNames, f.stats[:], w)
}

func (f *Fs) ResetOpStats() {
	for i := range f.stats {
		f.stats[i].Reset()
	}
}

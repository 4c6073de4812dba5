package timed_disk

import (
	"io"
	"time"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/util/stats"
)

// Layout tells which region of the volume a block belongs to, so that disk
// traffic can be broken down by superblock, bitmaps, inode table and data.
type Layout interface {
	Region(a uint64) int
	RegionNames() []string
}

// Disk wraps a disk.Disk and records the latency of every call.
type Disk struct {
	d       disk.Disk
	ops     [3]stats.Op
	layout  Layout
	regions []stats.Op // writes per region
}

func New(d disk.Disk) *Disk {
	return &Disk{d: d}
}

const (
	readOp int = iota
	writeOp
	barrierOp
)

var ops = []string{"disk.Read", "disk.Write", "disk.Barrier"}

// assert that Disk implements disk.Disk
var _ disk.Disk = &Disk{}

// SetLayout enables per-region write accounting.
func (d *Disk) SetLayout(l Layout) {
	d.layout = l
	d.regions = make([]stats.Op, len(l.RegionNames()))
}

func (d *Disk) ReadTo(a uint64, b disk.Block) {
	defer d.ops[readOp].Record(time.Now())
	d.d.ReadTo(a, b)
}

func (d *Disk) Read(a uint64) disk.Block {
	buf := make(disk.Block, disk.BlockSize)
	d.ReadTo(a, buf)
	return buf
}

func (d *Disk) Write(a uint64, b disk.Block) {
	start := time.Now()
	defer d.ops[writeOp].Record(start)
	if d.layout != nil {
		defer d.regions[d.layout.Region(a)].Record(start)
	}
	d.d.Write(a, b)
}

func (d *Disk) Barrier() {
	defer d.ops[barrierOp].Record(time.Now())
	d.d.Barrier()
}

func (d *Disk) Size() uint64 {
	return d.d.Size()
}

func (d *Disk) Close() {
	d.d.Close()
}

// Writes returns the number of writes so far, in total and per region.
func (d *Disk) Writes() (uint32, []uint32) {
	per := make([]uint32, len(d.regions))
	for i := range d.regions {
		per[i] = d.regions[i].Count()
	}
	return d.ops[writeOp].Count(), per
}

func (d *Disk) WriteStats(w io.Writer) {
	stats.WriteTable(ops, d.ops[:], w)
	if d.layout != nil {
		names := d.layout.RegionNames()
		regionNames := make([]string, len(names))
		for i, n := range names {
			regionNames[i] = "write." + n
		}
		stats.WriteTable(regionNames, d.regions, w)
	}
}

func (d *Disk) ResetStats() {
	for i := range d.ops {
		d.ops[i].Reset()
	}
	for i := range d.regions {
		d.regions[i].Reset()
	}
}

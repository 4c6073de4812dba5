package fd

import (
	"github.com/mit-pdos/go-blockfs/common"
)

// Desc is an open-file session: which inode, where the cursor is, and what
// the session may do.
type Desc struct {
	inuse  bool
	Cursor uint64
	Inum   common.Inum
	Mode   int
}

func (d *Desc) CanRead() bool {
	return d.Mode == common.O_RDONLY || d.Mode == common.O_RDWR
}

func (d *Desc) CanWrite() bool {
	return d.Mode == common.O_WRONLY || d.Mode == common.O_RDWR
}

// Table is a fixed-capacity descriptor table. A descriptor is the index of
// its slot.
type Table struct {
	descs []Desc
}

func MkTable(n uint64) *Table {
	return &Table{descs: make([]Desc, n)}
}

func ValidMode(mode int) bool {
	return mode == common.O_RDONLY || mode == common.O_WRONLY || mode == common.O_RDWR
}

// HasFree reports whether Open would find a slot.
func (t *Table) HasFree() bool {
	for i := range t.descs {
		if !t.descs[i].inuse {
			return true
		}
	}
	return false
}

// Open claims the first free slot.
func (t *Table) Open(inum common.Inum, mode int) (int, error) {
	if !ValidMode(mode) {
		return -1, common.ErrInval
	}
	for i := range t.descs {
		if !t.descs[i].inuse {
			t.descs[i] = Desc{inuse: true, Cursor: 0, Inum: inum, Mode: mode}
			return i, nil
		}
	}
	return -1, common.ErrNoHandles
}

func (t *Table) Get(fd int) (*Desc, error) {
	if fd < 0 || fd >= len(t.descs) || !t.descs[fd].inuse {
		return nil, common.ErrBadHandle
	}
	return &t.descs[fd], nil
}

// Close frees the slot and returns the inode it referenced.
func (t *Table) Close(fd int) (common.Inum, error) {
	d, err := t.Get(fd)
	if err != nil {
		return 0, err
	}
	inum := d.Inum
	*d = Desc{}
	return inum, nil
}

// Refs counts the open descriptors that reference inum.
func (t *Table) Refs(inum common.Inum) uint64 {
	var n uint64
	for i := range t.descs {
		if t.descs[i].inuse && t.descs[i].Inum == inum {
			n++
		}
	}
	return n
}

// Reset closes every descriptor.
func (t *Table) Reset() {
	for i := range t.descs {
		t.descs[i] = Desc{}
	}
}

package blockfs

import (
	"errors"
	"strings"
	"time"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/dir"
	"github.com/mit-pdos/go-blockfs/fd"
	"github.com/mit-pdos/go-blockfs/inode"
	"github.com/mit-pdos/go-blockfs/namei"
)

type Stat struct {
	Inum   common.Inum
	Kind   common.Kind
	Nlink  uint32
	Size   uint64
	Blocks uint64 // data blocks, plus the indirect block if present
}

// release drops one link to ip and frees it once no name and no open
// descriptor refers to it.
func (f *Fs) release(ip *inode.Inode) {
	ip.DecLink(f.fs)
	if ip.Nlink == 0 && f.fds.Refs(ip.Inum) == 0 {
		ip.FreeInode(f.fs)
	}
}

// Open returns a descriptor for path. A missing file is created unless
// flags is O_RDONLY.
func (f *Fs) Open(path string, flags int) (int, error) {
	defer f.recordOp(OP_OPEN, time.Now())
	util.DPrintf(1, "Open %s %d\n", path, flags)
	if !fd.ValidMode(flags) {
		return -1, common.ErrInval
	}
	inum, err := namei.Resolve(f.fs, path, f.cwd, namei.Directory)
	if err == nil {
		ip := inode.ReadInode(f.fs, inum)
		if ip.IsDir() && flags != common.O_RDONLY {
			return -1, common.ErrIsDir
		}
		return f.fds.Open(inum, flags)
	}
	if !errors.Is(err, common.ErrNotFound) || flags == common.O_RDONLY {
		return -1, err
	}
	if strings.HasSuffix(path, "/") {
		return -1, common.ErrIsDir
	}
	if !f.fds.HasFree() {
		return -1, common.ErrNoHandles
	}
	pnum, name, err := namei.Parent(f.fs, path, f.cwd)
	if err != nil {
		return -1, err
	}
	if err := dir.ValidName(name); err != nil {
		return -1, err
	}
	ip, err := inode.AllocInode(f.fs, common.KindFile)
	if err != nil {
		return -1, err
	}
	dip := inode.ReadInode(f.fs, pnum)
	if err := dir.AddEntry(f.fs, dip, ip.Inum, name); err != nil {
		ip.FreeInode(f.fs)
		return -1, err
	}
	return f.fds.Open(ip.Inum, flags)
}

// Close releases fd. If the file was unlinked while open and this was the
// last descriptor on it, the file is freed.
func (f *Fs) Close(fd int) error {
	defer f.recordOp(OP_CLOSE, time.Now())
	inum, err := f.fds.Close(fd)
	if err != nil {
		return err
	}
	ip := inode.ReadInode(f.fs, inum)
	if ip.Nlink == 0 && f.fds.Refs(inum) == 0 {
		util.DPrintf(1, "Close: deferred free # %d\n", inum)
		ip.FreeInode(f.fs)
	}
	return nil
}

// Read reads up to len(buf) bytes at the cursor of fd and advances it.
func (f *Fs) Read(fd int, buf []byte) (int, error) {
	defer f.recordOp(OP_READ, time.Now())
	d, err := f.fds.Get(fd)
	if err != nil {
		return -1, err
	}
	if !d.CanRead() {
		return -1, common.ErrBadHandle
	}
	ip := inode.ReadInode(f.fs, d.Inum)
	data := ip.Read(f.fs, d.Cursor, uint64(len(buf)))
	n := copy(buf, data)
	d.Cursor += uint64(n)
	return n, nil
}

// Write writes data at the cursor of fd and advances it. On ErrNoSpace the
// returned count tells how much was written.
func (f *Fs) Write(fd int, data []byte) (int, error) {
	defer f.recordOp(OP_WRITE, time.Now())
	d, err := f.fds.Get(fd)
	if err != nil {
		return -1, err
	}
	if !d.CanWrite() {
		return -1, common.ErrBadHandle
	}
	ip := inode.ReadInode(f.fs, d.Inum)
	if ip.IsDir() {
		return -1, common.ErrIsDir
	}
	n, err := ip.Write(f.fs, d.Cursor, data)
	d.Cursor += n
	return int(n), err
}

// Lseek moves the cursor of fd to the absolute offset off and returns the
// previous cursor.
func (f *Fs) Lseek(fd int, off int64) (int64, error) {
	defer f.recordOp(OP_LSEEK, time.Now())
	d, err := f.fds.Get(fd)
	if err != nil {
		return -1, err
	}
	if off < 0 || uint64(off) > common.MaxFileSize() {
		return -1, common.ErrInval
	}
	prev := d.Cursor
	d.Cursor = uint64(off)
	return int64(prev), nil
}

// Mkdir creates the directory path, and any missing directories leading up
// to it.
func (f *Fs) Mkdir(path string) error {
	defer f.recordOp(OP_MKDIR, time.Now())
	return f.mkdir(path)
}

func (f *Fs) mkdir(path string) error {
	util.DPrintf(1, "Mkdir %s\n", path)
	if uint64(len(path)) > common.MAXPATHLEN {
		return common.ErrPathTooLong
	}
	parent, name := namei.Split(path)
	if name == "" {
		if parent == "/" {
			return common.ErrExists
		}
		return common.ErrInval
	}
	if dir.IllegalName(name) {
		return common.ErrExists
	}
	if err := dir.ValidName(name); err != nil {
		return err
	}
	pnum, err := namei.Resolve(f.fs, parent, f.cwd, namei.Directory)
	if errors.Is(err, common.ErrNotFound) && parent != "" && parent != "/" {
		if err := f.mkdir(parent); err != nil {
			return err
		}
		pnum, err = namei.Resolve(f.fs, parent, f.cwd, namei.Directory)
	}
	if err != nil {
		return err
	}
	dip := inode.ReadInode(f.fs, pnum)
	if !dip.IsDir() {
		return common.ErrNotDir
	}
	if _, err := dir.Lookup(f.fs, dip, name); err == nil {
		return common.ErrExists
	}
	ip, err := inode.AllocInode(f.fs, common.KindDir)
	if err != nil {
		return err
	}
	if err := dir.InitDir(f.fs, ip, pnum); err != nil {
		ip.FreeInode(f.fs)
		return err
	}
	if err := dir.AddEntry(f.fs, dip, ip.Inum, name); err != nil {
		ip.FreeInode(f.fs)
		return err
	}
	return nil
}

// isAncestor reports whether anc is inum or one of the directories above
// it.
func (f *Fs) isAncestor(anc common.Inum, inum common.Inum) bool {
	var cur = inum
	for i := uint64(0); i <= f.fs.Super.NInode; i++ {
		if cur == anc {
			return true
		}
		if cur == common.ROOTINUM {
			return false
		}
		parent, err := dir.Lookup(f.fs, inode.ReadInode(f.fs, cur), "..")
		if err != nil {
			return false
		}
		cur = parent
	}
	return false
}

// Rmdir removes the directory path and everything below it. The root, and
// any directory holding the working directory, cannot be removed.
func (f *Fs) Rmdir(path string) error {
	defer f.recordOp(OP_RMDIR, time.Now())
	util.DPrintf(1, "Rmdir %s\n", path)
	inum, err := namei.Resolve(f.fs, path, f.cwd, namei.Directory)
	if err != nil {
		return err
	}
	parent, name := namei.Split(path)
	if inum == common.ROOTINUM || name == "" || dir.IllegalName(name) {
		return common.ErrInval
	}
	ip := inode.ReadInode(f.fs, inum)
	if !ip.IsDir() {
		return common.ErrNotDir
	}
	if f.isAncestor(inum, f.cwd) {
		return common.ErrInval
	}
	pnum, err := namei.Resolve(f.fs, parent, f.cwd, namei.Directory)
	if err != nil {
		return err
	}
	f.removeTree(ip)
	return dir.Delete(f.fs, inode.ReadInode(f.fs, pnum), name)
}

// removeTree empties dip, recursing into subdirectories, and then drops
// dip itself. Entries are removed one at a time, so an interrupted walk
// leaves a smaller but consistent tree behind.
func (f *Fs) removeTree(dip *inode.Inode) {
	for _, de := range dir.Entries(f.fs, dip) {
		if dir.IllegalName(de.Name) {
			continue
		}
		ip := inode.ReadInode(f.fs, de.Inum)
		if ip.IsDir() {
			f.removeTree(ip)
		} else {
			f.release(ip)
		}
		if err := dir.Delete(f.fs, dip, de.Name); err != nil {
			panic("removeTree")
		}
	}
	f.release(dip)
}

// Cd changes the working directory.
func (f *Fs) Cd(path string) error {
	defer f.recordOp(OP_CD, time.Now())
	inum, err := namei.Resolve(f.fs, path, f.cwd, namei.Directory)
	if err != nil {
		return err
	}
	if !inode.ReadInode(f.fs, inum).IsDir() {
		return common.ErrNotDir
	}
	f.cwd = inum
	return nil
}

// Link adds the name newPath for the file oldPath.
func (f *Fs) Link(oldPath string, newPath string) error {
	defer f.recordOp(OP_LINK, time.Now())
	util.DPrintf(1, "Link %s %s\n", oldPath, newPath)
	inum, err := namei.Resolve(f.fs, oldPath, f.cwd, namei.File)
	if err != nil {
		return err
	}
	ip := inode.ReadInode(f.fs, inum)
	if ip.IsDir() {
		return common.ErrIsDir
	}
	pnum, name, err := namei.Parent(f.fs, newPath, f.cwd)
	if err != nil {
		return err
	}
	if err := dir.ValidName(name); err != nil {
		return err
	}
	dip := inode.ReadInode(f.fs, pnum)
	if _, err := dir.Lookup(f.fs, dip, name); err == nil {
		return common.ErrExists
	}
	ip.IncLink(f.fs)
	if err := dir.AddEntry(f.fs, dip, inum, name); err != nil {
		ip.DecLink(f.fs)
		return err
	}
	return nil
}

// Unlink removes the name path. The file is freed once it has no names
// left and no descriptor is open on it.
func (f *Fs) Unlink(path string) error {
	defer f.recordOp(OP_UNLINK, time.Now())
	util.DPrintf(1, "Unlink %s\n", path)
	inum, err := namei.Resolve(f.fs, path, f.cwd, namei.File)
	if err != nil {
		return err
	}
	ip := inode.ReadInode(f.fs, inum)
	if ip.IsDir() {
		return common.ErrIsDir
	}
	pnum, name, err := namei.Parent(f.fs, path, f.cwd)
	if err != nil {
		return err
	}
	if err := dir.Delete(f.fs, inode.ReadInode(f.fs, pnum), name); err != nil {
		return err
	}
	f.release(ip)
	return nil
}

func (f *Fs) Stat(path string) (Stat, error) {
	defer f.recordOp(OP_STAT, time.Now())
	inum, err := namei.Resolve(f.fs, path, f.cwd, namei.Directory)
	if err != nil {
		return Stat{}, err
	}
	ip := inode.ReadInode(f.fs, inum)
	return Stat{
		Inum:   ip.Inum,
		Kind:   ip.Kind,
		Nlink:  ip.Nlink,
		Size:   ip.Size,
		Blocks: ip.StatBlocks(),
	}, nil
}

// Readdir lists the entries of the directory path, "." and ".." included,
// in on-disk order.
func (f *Fs) Readdir(path string) ([]dir.DirEnt, error) {
	defer f.recordOp(OP_READDIR, time.Now())
	inum, err := namei.Resolve(f.fs, path, f.cwd, namei.Directory)
	if err != nil {
		return nil, err
	}
	dip := inode.ReadInode(f.fs, inum)
	if !dip.IsDir() {
		return nil, common.ErrNotDir
	}
	return dir.Entries(f.fs, dip), nil
}

package namei

import (
	"strings"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/dir"
	"github.com/mit-pdos/go-blockfs/fs"
	"github.com/mit-pdos/go-blockfs/inode"
)

// Mode selects how Resolve treats the path.
type Mode int

const (
	// Directory tolerates one trailing '/'; the result may be of any kind.
	Directory Mode = iota
	// File rejects paths that are empty or end in '/'.
	File
	// ParentOfLast resolves everything but the last component, which must
	// name a directory.
	ParentOfLast
)

// Resolve maps path to an inode. Relative paths start at cwd, absolute ones
// at the root.
func Resolve(fs *fs.Fs, path string, cwd common.Inum, mode Mode) (common.Inum, error) {
	if uint64(len(path)) > common.MAXPATHLEN {
		return 0, common.ErrPathTooLong
	}
	var base = cwd
	if strings.HasPrefix(path, "/") {
		base = common.ROOTINUM
		path = path[1:]
	}
	switch mode {
	case File:
		if path == "" {
			return 0, common.ErrNotFound
		}
		if strings.HasSuffix(path, "/") {
			return 0, common.ErrNotDir
		}
	case Directory:
		path = strings.TrimSuffix(path, "/")
	case ParentOfLast:
		if i := strings.LastIndexByte(path, '/'); i >= 0 {
			path = path[:i]
		} else {
			path = ""
		}
		inum, err := walk(fs, base, path)
		if err != nil {
			return 0, err
		}
		if !inode.ReadInode(fs, inum).IsDir() {
			return 0, common.ErrNotDir
		}
		return inum, nil
	}
	return walk(fs, base, path)
}

// walk looks up the first component of path in dnum and recurses into it
// with the rest of the path.
func walk(fs *fs.Fs, dnum common.Inum, path string) (common.Inum, error) {
	if path == "" {
		return dnum, nil
	}
	name, rest, more := strings.Cut(path, "/")
	if name == "" {
		return walk(fs, dnum, rest)
	}
	if uint64(len(name)) > common.MAXNAMELEN {
		return 0, common.ErrNameTooLong
	}
	dip := inode.ReadInode(fs, dnum)
	inum, err := dir.Lookup(fs, dip, name)
	if err != nil {
		return 0, err
	}
	util.DPrintf(10, "walk # %d: %s -> %d\n", dnum, name, inum)
	if !more {
		return inum, nil
	}
	if !inode.ReadInode(fs, inum).IsDir() {
		return 0, common.ErrNotDir
	}
	return walk(fs, inum, rest)
}

// Parent returns the directory that holds the last component of path, and
// that component.
func Parent(fs *fs.Fs, path string, cwd common.Inum) (common.Inum, string, error) {
	pnum, err := Resolve(fs, path, cwd, ParentOfLast)
	if err != nil {
		return 0, "", err
	}
	name := path[strings.LastIndexByte(path, '/')+1:]
	if uint64(len(name)) > common.MAXNAMELEN {
		return 0, "", common.ErrNameTooLong
	}
	return pnum, name, nil
}

// Split separates path into its directory part and last component, after
// dropping one trailing '/'. The directory part keeps a leading '/'.
func Split(path string) (string, string) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"github.com/mit-pdos/go-journal/util"
	"github.com/rodaine/table"
	"github.com/tchajed/goose/machine/disk"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-blockfs/blockfs"
	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/util/timed_disk"
)

// openImage locks the image file and opens it as a disk. An existing image
// keeps its size; a new one gets size blocks.
func openImage(name string, size uint64) (disk.Disk, func(), error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening image: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("locking image %s: %w", name, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat image: %w", err)
	}
	if st.Size() > 0 {
		size = uint64(st.Size()) / disk.BlockSize
	}
	d, err := disk.NewFileDisk(name, size)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("could not create disk: %w", err)
	}
	return d, func() { f.Close() }, nil
}

// withFs mounts the image named by the global flags around action. With
// format set the image is formatted first.
func withFs(format bool, action func(fs *blockfs.Fs, ctx *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		d, unlock, err := openImage(ctx.String("disk"), ctx.Uint64("size"))
		if err != nil {
			return err
		}
		defer unlock()
		var td *timed_disk.Disk
		if ctx.Bool("stats") {
			td = timed_disk.New(d)
			d = td
		}
		var fs *blockfs.Fs
		if format {
			fs, err = blockfs.Mkfs(d)
		} else {
			fs, err = blockfs.Mount(d)
		}
		if err != nil {
			d.Close()
			return fmt.Errorf("mounting %s: %w", ctx.String("disk"), err)
		}
		if td != nil {
			td.SetLayout(fs)
		}
		err = action(fs, ctx)
		fs.Unmount()
		if td != nil {
			fs.WriteOpStats(os.Stderr)
			td.WriteStats(os.Stderr)
		}
		return err
	}
}

func arg(ctx *cli.Context, i int) (string, error) {
	if ctx.NArg() <= i {
		return "", fmt.Errorf("%s: missing argument %d", ctx.Command.Name, i+1)
	}
	return ctx.Args().Get(i), nil
}

func onPath(f func(fs *blockfs.Fs, p string) error) func(fs *blockfs.Fs, ctx *cli.Context) error {
	return func(fs *blockfs.Fs, ctx *cli.Context) error {
		p, err := arg(ctx, 0)
		if err != nil {
			return err
		}
		if err := f(fs, p); err != nil {
			return fmt.Errorf("%s %s: %w", ctx.Command.Name, p, err)
		}
		return nil
	}
}

func ls(fs *blockfs.Fs, p string) error {
	ents, err := fs.Readdir(p)
	if err != nil {
		return err
	}
	tbl := table.New("name", "inum", "kind", "nlink", "size", "blocks")
	for _, de := range ents {
		st, err := fs.Stat(path.Join(p, de.Name))
		if err != nil {
			return err
		}
		tbl.AddRow(de.Name, st.Inum, st.Kind, st.Nlink, st.Size, st.Blocks)
	}
	tbl.WithWriter(os.Stdout).Print()
	return nil
}

func stat(fs *blockfs.Fs, p string) error {
	st, err := fs.Stat(p)
	if err != nil {
		return err
	}
	fmt.Printf("inum %d kind %v nlink %d size %d blocks %d\n",
		st.Inum, st.Kind, st.Nlink, st.Size, st.Blocks)
	return nil
}

func statfs(fs *blockfs.Fs, ctx *cli.Context) error {
	st := fs.Statfs()
	tbl := table.New("", "")
	tbl.AddRow("uuid", st.UUID)
	tbl.AddRow("size", st.Size)
	tbl.AddRow("block size", st.BlockSize)
	tbl.AddRow("data blocks", st.Blocks)
	tbl.AddRow("free blocks", st.BlocksFree)
	tbl.AddRow("inodes", st.Inodes)
	tbl.AddRow("free inodes", st.InodesFree)
	tbl.AddRow("max file size", st.MaxFileSize)
	tbl.WithWriter(os.Stdout).Print()
	return nil
}

// put copies a host file into the volume, replacing any existing file.
func put(fs *blockfs.Fs, ctx *cli.Context) error {
	src, err := arg(ctx, 0)
	if err != nil {
		return err
	}
	dst, err := arg(ctx, 1)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if _, err := fs.Stat(dst); err == nil {
		if err := fs.Unlink(dst); err != nil {
			return fmt.Errorf("put %s: %w", dst, err)
		}
	}
	fd, err := fs.Open(dst, common.O_WRONLY)
	if err != nil {
		return fmt.Errorf("put %s: %w", dst, err)
	}
	defer fs.Close(fd)
	n, err := fs.Write(fd, data)
	if err != nil {
		return fmt.Errorf("put %s: wrote %d of %d bytes: %w", dst, n, len(data), err)
	}
	return nil
}

// get copies a file out of the volume to stdout, or to a host file.
func get(fs *blockfs.Fs, ctx *cli.Context) error {
	src, err := arg(ctx, 0)
	if err != nil {
		return err
	}
	var w io.Writer = os.Stdout
	if ctx.NArg() > 1 {
		f, err := os.Create(ctx.Args().Get(1))
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	fd, err := fs.Open(src, common.O_RDONLY)
	if err != nil {
		return fmt.Errorf("get %s: %w", src, err)
	}
	defer fs.Close(fd)
	buf := make([]byte, 16*disk.BlockSize)
	for {
		n, err := fs.Read(fd, buf)
		if err != nil {
			return fmt.Errorf("get %s: %w", src, err)
		}
		if n == 0 {
			return nil
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func link(fs *blockfs.Fs, ctx *cli.Context) error {
	oldPath, err := arg(ctx, 0)
	if err != nil {
		return err
	}
	newPath, err := arg(ctx, 1)
	if err != nil {
		return err
	}
	if err := fs.Link(oldPath, newPath); err != nil {
		return fmt.Errorf("ln %s %s: %w", oldPath, newPath, err)
	}
	return nil
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	app := cli.App{
		Name:  "blockfs",
		Usage: "inspect and modify a blockfs disk image",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "disk",
				Usage: "disk image",
				Value: cfg.Disk,
			},
			&cli.Uint64Flag{
				Name:  "size",
				Usage: "size in blocks of a newly created image",
				Value: cfg.Size,
			},
			&cli.Uint64Flag{
				Name:        "debug",
				Usage:       "debug level (higher is more verbose)",
				Value:       cfg.Debug,
				Destination: &util.Debug,
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "dump operation and disk stats to stderr at end",
			},
		},
		Commands: []*cli.Command{{
			Name:   "mkfs",
			Usage:  "format the image",
			Action: withFs(true, func(fs *blockfs.Fs, ctx *cli.Context) error { return nil }),
		}, {
			Name:   "statfs",
			Usage:  "show volume geometry and usage",
			Action: withFs(false, statfs),
		}, {
			Name:   "check",
			Usage:  "verify the allocation invariants",
			Action: withFs(false, func(fs *blockfs.Fs, ctx *cli.Context) error { return fs.Check() }),
		}, {
			Name:      "ls",
			Usage:     "list a directory",
			ArgsUsage: "PATH",
			Action:    withFs(false, onPath(ls)),
		}, {
			Name:      "stat",
			ArgsUsage: "PATH",
			Action:    withFs(false, onPath(stat)),
		}, {
			Name:      "mkdir",
			Usage:     "create a directory and any missing parents",
			ArgsUsage: "PATH",
			Action:    withFs(false, onPath((*blockfs.Fs).Mkdir)),
		}, {
			Name:      "rmdir",
			Usage:     "remove a directory and everything in it",
			ArgsUsage: "PATH",
			Action:    withFs(false, onPath((*blockfs.Fs).Rmdir)),
		}, {
			Name:      "rm",
			Aliases:   []string{"unlink"},
			ArgsUsage: "PATH",
			Action:    withFs(false, onPath((*blockfs.Fs).Unlink)),
		}, {
			Name:      "ln",
			Usage:     "add a name for a file",
			ArgsUsage: "OLD NEW",
			Action:    withFs(false, link),
		}, {
			Name:      "put",
			Usage:     "copy a host file into the image",
			ArgsUsage: "SRC DST",
			Action:    withFs(false, put),
		}, {
			Name:      "get",
			Usage:     "copy a file out of the image",
			ArgsUsage: "SRC [DST]",
			Action:    withFs(false, get),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Print(err)
		// exit status is the magnitude of the file system error code
		os.Exit(-common.Code(err))
	}
}

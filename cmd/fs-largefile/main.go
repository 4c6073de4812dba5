package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/blockfs"
	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/util/timed_disk"
)

const (
	KB    uint64 = 1024
	WSIZE        = 16 * disk.BlockSize
)

func makefile(fs *blockfs.Fs, name string, data []byte, size uint64) {
	fd, err := fs.Open(name, common.O_WRONLY)
	if err != nil {
		panic(err)
	}
	for i := uint64(0); i < size/WSIZE; i++ {
		_, err = fs.Write(fd, data)
		if err != nil {
			panic(err)
		}
	}
	err = fs.Close(fd)
	if err != nil {
		panic(err)
	}
}

func mkdata(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

func main() {
	sizeKB := flag.Uint64("size", 8*1024, "file size (in KB)")
	dumpStats := flag.Bool("stats", false, "dump stats to stderr at end")
	flag.Parse()

	size := *sizeKB * KB
	if size > common.MaxFileSize() {
		fmt.Fprintf(os.Stderr, "fs-largefile: size exceeds max file size %d\n", common.MaxFileSize())
		os.Exit(1)
	}
	// room for two files plus metadata
	diskBlocks := 2*(size/disk.BlockSize+2) + 1000
	td := timed_disk.New(disk.NewMemDisk(diskBlocks))
	fs, err := blockfs.Mkfs(td)
	if err != nil {
		panic(err)
	}
	td.SetLayout(fs)

	data := mkdata(WSIZE)
	makefile(fs, "/large.warmup", data, size)
	fs.ResetOpStats()
	td.ResetStats()
	start := time.Now()
	makefile(fs, "/large", data, size)
	elapsed := time.Now().Sub(start)
	tput := float64(size/KB) / 1024 / elapsed.Seconds()
	fmt.Printf("fs-largefile: %v KB throughput %.2f MB/s\n", size/KB, tput)

	if *dumpStats {
		fs.WriteOpStats(os.Stderr)
		td.WriteStats(os.Stderr)
	}
}

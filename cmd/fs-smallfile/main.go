package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-blockfs/blockfs"
	"github.com/mit-pdos/go-blockfs/common"
	"github.com/mit-pdos/go-blockfs/util/timed_disk"
)

// smallfile represents one iteration of this benchmark: it creates a file,
// write data to it, and deletes it.
func smallfile(fs *blockfs.Fs, name string, data []byte) {
	fd, err := fs.Open(name, common.O_RDWR)
	if err != nil {
		panic(err)
	}
	_, err = fs.Write(fd, data)
	if err != nil {
		panic(err)
	}
	fs.Close(fd)
	err = fs.Unlink(name)
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

type result struct {
	iters int
	times []time.Duration
}

func client(fs *blockfs.Fs, duration time.Duration, allTimes bool, dir string, data []byte) result {
	var times []time.Duration
	if allTimes {
		times = make([]time.Duration, 0, int(duration.Seconds()*1000))
	}
	start := time.Now()
	i := 0
	var elapsed time.Duration
	for {
		s := strconv.Itoa(i)
		before := elapsed
		smallfile(fs, dir+"/x"+s, data)
		i++
		elapsed = time.Since(start)
		if allTimes {
			times = append(times, (elapsed - before))
		}
		if elapsed >= duration {
			return result{iters: i, times: times}
		}
	}
}

func main() {
	var duration time.Duration
	var timingFile string
	var diskfile string
	var diskBlocks uint64
	var fileSize uint64
	var dumpStats bool
	flag.DurationVar(&duration, "benchtime", 10*time.Second, "time to run the benchmark for")
	flag.StringVar(&timingFile, "time-iters", "", "file for individual iteration timings")
	flag.StringVar(&diskfile, "disk", "", "disk image (empty for MemDisk)")
	flag.Uint64Var(&diskBlocks, "size", 10000, "size of file system (in blocks)")
	flag.Uint64Var(&fileSize, "filesize", 100, "bytes written per file")
	flag.BoolVar(&dumpStats, "stats", false, "dump stats to stderr at end")
	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")
	flag.Parse()

	var d disk.Disk
	if diskfile == "" {
		d = disk.NewMemDisk(diskBlocks)
	} else {
		var err error
		d, err = disk.NewFileDisk(diskfile, diskBlocks)
		if err != nil {
			panic(fmt.Errorf("could not create disk: %w", err))
		}
	}
	td := timed_disk.New(d)
	fs, err := blockfs.Mkfs(td)
	if err != nil {
		panic(err)
	}
	td.SetLayout(fs)
	if err := fs.Mkdir("/bench"); err != nil {
		panic(err)
	}
	data := mkdata(fileSize)

	// warmup (skip if running for very little time, for example when using a
	// duration of 0s to run just one iteration)
	if duration > 500*time.Millisecond {
		client(fs, 500*time.Millisecond, false, "/bench", data)
		fs.ResetOpStats()
		td.ResetStats()
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			panic(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	start := time.Now()
	r := client(fs, duration, timingFile != "", "/bench", data)
	elapsed := time.Since(start)
	fmt.Printf("fs-smallfile: %0.4f file/sec\n", float64(r.iters)/elapsed.Seconds())
	writes, _ := td.Writes()
	fmt.Printf("fs-smallfile: %0.1f disk writes/file\n", float64(writes)/float64(r.iters))

	if len(r.times) > 0 {
		f, err := os.Create(timingFile)
		if err != nil {
			panic(fmt.Errorf("could not create timing file: %v", err))
		}
		for _, t := range r.times {
			fmt.Fprintf(f, "%f\n", t.Seconds())
		}
		f.Close()
	}

	if err := fs.Check(); err != nil {
		panic(err)
	}
	if dumpStats {
		fs.WriteOpStats(os.Stderr)
		td.WriteStats(os.Stderr)
	}
	fs.Unmount()
}

//go:build linux

package health

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// systemProbe reads /proc for CPU and memory and statfs for disk.
type systemProbe struct {
	diskPath string

	mu        sync.Mutex
	fs        procfs.FS
	fsErr     error
	prevBusy  float64
	prevTotal float64
}

// NewSystemProbe returns the host probe. diskPath selects the filesystem
// whose usage is reported; "" means "/".
func NewSystemProbe(diskPath string) Probe {
	if diskPath == "" {
		diskPath = "/"
	}
	fs, err := procfs.NewDefaultFS()
	return &systemProbe{diskPath: diskPath, fs: fs, fsErr: err}
}

func (p *systemProbe) Usage(ctx context.Context) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return unknownUsage, err
	}

	u := unknownUsage
	var errs []error

	if p.fsErr != nil {
		errs = append(errs, fmt.Errorf("%w: procfs: %v", ErrProbeFailed, p.fsErr))
	} else {
		if cpu, err := p.cpuPercent(); err != nil {
			errs = append(errs, err)
		} else {
			u.CPUPercent = cpu
		}
		if mem, err := p.memoryPercent(); err != nil {
			errs = append(errs, err)
		} else {
			u.MemoryPercent = mem
		}
	}

	if disk, err := p.diskPercent(); err != nil {
		errs = append(errs, err)
	} else {
		u.DiskPercent = disk
	}

	return u, errors.Join(errs...)
}

// cpuPercent is the busy share of CPU time since the previous call, or since
// boot on the first call.
func (p *systemProbe) cpuPercent() (float64, error) {
	stat, err := p.fs.Stat()
	if err != nil {
		return -1, fmt.Errorf("%w: /proc/stat: %v", ErrProbeFailed, err)
	}

	c := stat.CPUTotal
	idle := c.Idle + c.Iowait
	total := c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
	busy := total - idle

	p.mu.Lock()
	defer p.mu.Unlock()

	dBusy, dTotal := busy-p.prevBusy, total-p.prevTotal
	p.prevBusy, p.prevTotal = busy, total
	if dTotal <= 0 {
		return 0, nil
	}
	return percent(dBusy, dTotal), nil
}

func (p *systemProbe) memoryPercent() (float64, error) {
	mi, err := p.fs.Meminfo()
	if err != nil {
		return -1, fmt.Errorf("%w: /proc/meminfo: %v", ErrProbeFailed, err)
	}
	if mi.MemTotal == nil || mi.MemAvailable == nil {
		return -1, fmt.Errorf("%w: /proc/meminfo: missing MemTotal or MemAvailable", ErrProbeFailed)
	}
	total := float64(*mi.MemTotal)
	return percent(total-float64(*mi.MemAvailable), total), nil
}

func (p *systemProbe) diskPercent() (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(p.diskPath, &st); err != nil {
		return -1, fmt.Errorf("%w: statfs %s: %v", ErrProbeFailed, p.diskPath, err)
	}
	used := float64(st.Blocks - st.Bfree)
	return percent(used, used+float64(st.Bavail)), nil
}

package resources

import (
	"fmt"
	"sync"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Probe samples host memory, CPU, and disk pressure and answers the
// one question the launch paths ask: is there room for another workspace.
type Probe struct {
	mu sync.Mutex

	memThresholdPct float64
	cpuThresholdPct float64
	liveCount       func() int

	readMem  func() (used, total uint64, err error)
	readCPU  func() (busy, total float64, cores int, err error)
	readDisk func() (used, total uint64, err error)

	// previous CPU counters, for usage-over-interval deltas
	lastBusy  float64
	lastTotal float64
	hasLast   bool
}

// NewProbe creates a probe reading /proc and the filesystem holding
// dataDir. liveCount supplies the current workspace population and may be
// nil.
func NewProbe(dataDir string, memThresholdPct, cpuThresholdPct float64, liveCount func() int) (*Probe, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}

	p := &Probe{
		memThresholdPct: memThresholdPct,
		cpuThresholdPct: cpuThresholdPct,
		liveCount:       liveCount,
	}
	p.readMem = func() (uint64, uint64, error) { return readMeminfo(fs) }
	p.readCPU = func() (float64, float64, int, error) { return readCPUStat(fs) }
	p.readDisk = func() (uint64, uint64, error) { return readStatfs(dataDir) }
	return p, nil
}

// Snapshot returns a point-in-time view of host resources. CPU usage is
// computed from the delta against the previous call; the first call
// reports zero.
func (p *Probe) Snapshot() (types.ResourceSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var snap types.ResourceSnapshot

	memUsed, memTotal, err := p.readMem()
	if err != nil {
		return snap, fmt.Errorf("failed to read meminfo: %w", err)
	}
	snap.MemUsed = memUsed
	snap.MemTotal = memTotal
	if memTotal > 0 {
		snap.MemPct = float64(memUsed) / float64(memTotal) * 100
	}

	busy, total, cores, err := p.readCPU()
	if err != nil {
		return snap, fmt.Errorf("failed to read cpu stat: %w", err)
	}
	snap.CPUCores = cores
	if p.hasLast && total > p.lastTotal {
		snap.CPUUsagePct = (busy - p.lastBusy) / (total - p.lastTotal) * 100
		if snap.CPUUsagePct < 0 {
			snap.CPUUsagePct = 0
		}
	}
	p.lastBusy = busy
	p.lastTotal = total
	p.hasLast = true

	diskUsed, diskTotal, err := p.readDisk()
	if err != nil {
		return snap, fmt.Errorf("failed to read disk usage: %w", err)
	}
	snap.DiskUsed = diskUsed
	snap.DiskTotal = diskTotal
	if diskTotal > 0 {
		snap.DiskPct = float64(diskUsed) / float64(diskTotal) * 100
	}

	if p.liveCount != nil {
		snap.LiveWorkspaces = p.liveCount()
	}
	return snap, nil
}

// CanLaunch reports whether another workspace may start. Memory above its
// threshold refuses the launch; CPU above its threshold is logged but does
// not block. A failed probe allows the launch rather than wedging the
// control plane on a broken /proc read.
func (p *Probe) CanLaunch() (bool, string) {
	snap, err := p.Snapshot()
	if err != nil {
		log.WithComponent("resources").Warn().Err(err).Msg("Resource probe failed, allowing launch")
		return true, ""
	}

	p.mu.Lock()
	memThreshold := p.memThresholdPct
	cpuThreshold := p.cpuThresholdPct
	p.mu.Unlock()

	if snap.MemPct >= memThreshold {
		reason := fmt.Sprintf("memory usage %.1f%% at or above threshold %.1f%%", snap.MemPct, memThreshold)
		log.WithComponent("resources").Warn().
			Float64("mem_pct", snap.MemPct).
			Float64("threshold_pct", memThreshold).
			Msg("Refusing launch under memory pressure")
		return false, reason
	}

	if snap.CPUUsagePct >= cpuThreshold {
		log.WithComponent("resources").Warn().
			Float64("cpu_pct", snap.CPUUsagePct).
			Float64("threshold_pct", cpuThreshold).
			Msg("CPU usage above threshold, launch allowed")
	}
	return true, ""
}

// SetThresholds changes refusal thresholds at runtime.
func (p *Probe) SetThresholds(memPct, cpuPct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memThresholdPct = memPct
	p.cpuThresholdPct = cpuPct
}

// Thresholds returns the current refusal thresholds.
func (p *Probe) Thresholds() (memPct, cpuPct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.memThresholdPct, p.cpuThresholdPct
}

func readMeminfo(fs procfs.FS) (used, total uint64, err error) {
	mi, err := fs.Meminfo()
	if err != nil {
		return 0, 0, err
	}
	if mi.MemTotal == nil || mi.MemAvailable == nil {
		return 0, 0, fmt.Errorf("meminfo missing MemTotal or MemAvailable")
	}
	// procfs reports kB
	total = *mi.MemTotal * 1024
	available := *mi.MemAvailable * 1024
	if available > total {
		available = total
	}
	return total - available, total, nil
}

func readCPUStat(fs procfs.FS) (busy, total float64, cores int, err error) {
	stat, err := fs.Stat()
	if err != nil {
		return 0, 0, 0, err
	}
	c := stat.CPUTotal
	idle := c.Idle + c.Iowait
	busy = c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	return busy, busy + idle, len(stat.CPU), nil
}

func readStatfs(path string) (used, total uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	bsize := uint64(st.Bsize)
	total = st.Blocks * bsize
	free := st.Bavail * bsize
	if free > total {
		free = total
	}
	return total - free, total, nil
}

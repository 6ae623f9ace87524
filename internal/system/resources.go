package system

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// WorkerBytes estimates the memory one image pipeline holds: the decoded
// source, the letterbox and pan-end canvases, one working canvas and the
// encoder's own buffers.
func WorkerBytes(srcPixels, canvasPixels int) uint64 {
	const encoderOverhead = 256 << 20
	return uint64(srcPixels)*4 + uint64(canvasPixels)*4*3 + encoderOverhead
}

// SuggestWorkers returns requested when it is positive. Otherwise it sizes the
// pool from physical cores (ffmpeg threads on its own) and available memory.
func SuggestWorkers(requested int, perWorker uint64) int {
	if requested > 0 {
		return requested
	}

	n := 1
	if cores, err := cpu.Counts(false); err == nil && cores > 1 {
		n = cores / 2
	}

	if vm, err := mem.VirtualMemory(); err == nil && perWorker > 0 {
		byMem := int(vm.Available / perWorker)
		if byMem < n {
			n = byMem
		}
	}

	if n < 1 {
		n = 1
	}
	return n
}

// Snapshot is a point-in-time view of host resources for the stats report.
type Snapshot struct {
	LogicalCPUs   int
	TotalMemory   uint64
	UsedPercent   float64
	AvailableMemB uint64
}

func TakeSnapshot() Snapshot {
	var s Snapshot
	if n, err := cpu.Counts(true); err == nil {
		s.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.TotalMemory = vm.Total
		s.UsedPercent = vm.UsedPercent
		s.AvailableMemB = vm.Available
	}
	return s
}

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/ivlev/wideslider/internal/system"
)

type Status int

const (
	StatusDone Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is the outcome for one input file.
type Result struct {
	Input   string
	Output  string
	Status  Status
	Frames  int
	Elapsed time.Duration
	Err     error
}

// Report lists results in input order.
type Report struct {
	Results []Result
	Workers int
	Elapsed time.Duration
}

func (r *Report) count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) Done() int    { return r.count(StatusDone) }
func (r *Report) Skipped() int { return r.count(StatusSkipped) }
func (r *Report) Failed() int  { return r.count(StatusFailed) }

func (r *Report) Frames() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusDone {
			n += res.Frames
		}
	}
	return n
}

// FPS is the effective rendering + encoding rate over the whole batch.
func (r *Report) FPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Frames()) / r.Elapsed.Seconds()
}

// Stats formats the performance report.
func (r *Report) Stats(build string, snap system.Snapshot) string {
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Host: %d CPU | RAM %.1f/%.1f GB used\n"+
			"Workers: %d\n"+
			"Images: %d done, %d skipped, %d failed\n"+
			"Frames: %d\n"+
			"Total Time: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"----------------------------\n",
		build,
		snap.LogicalCPUs, float64(snap.TotalMemory-snap.AvailableMemB)/(1<<30), float64(snap.TotalMemory)/(1<<30),
		r.Workers,
		r.Done(), r.Skipped(), r.Failed(),
		r.Frames(),
		r.Elapsed.Seconds(),
		r.FPS(),
	)
}

// AppendBenchmark adds one line for this run to the benchmark log at path.
func (r *Report) AppendBenchmark(path, build, input string, now time.Time) error {
	line := fmt.Sprintf("[%s] Build: %s | Input: %s | Images: %d | Failed: %d | Frames: %d | Total: %.2fs | FPS: %.2f\n",
		now.Format("2006-01-02 15:04:05"),
		build,
		filepath.Base(input),
		len(r.Results),
		r.Failed(),
		r.Frames(),
		r.Elapsed.Seconds(),
		r.FPS(),
	)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}

//go:build !linux

package memory

import (
	"errors"
	"math"
	"runtime"
	"runtime/debug"
)

// SampleProcess compares the memory obtained by the Go runtime against the
// soft memory limit, the only bound known without platform calls.
func SampleProcess() (Usage, error) {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return Usage{}, errors.New("no memory limit configured (set GOMEMLIMIT)")
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return Usage{Used: stats.Sys, Total: uint64(limit)}, nil
}

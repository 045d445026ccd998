//go:build linux

package memory

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// SampleProcess returns the resident set size of this process and the total
// RAM of the machine.
func SampleProcess() (Usage, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Usage{}, fmt.Errorf("sysinfo: %w", err)
	}
	total := uint64(info.Totalram) * uint64(info.Unit)

	statm, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return Usage{}, fmt.Errorf("reading statm: %w", err)
	}
	fields := bytes.Fields(statm)
	if len(fields) < 2 {
		return Usage{}, fmt.Errorf("unexpected statm content %q", statm)
	}
	residentPages, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return Usage{}, fmt.Errorf("parsing statm resident pages: %w", err)
	}
	return Usage{
		Used:  residentPages * uint64(os.Getpagesize()),
		Total: total,
	}, nil
}

//go:build linux

package iocontext

import (
	"golang.org/x/sys/unix"
)

func currentThreadID() int {
	return unix.Gettid()
}

// setThreadAffinity pins the calling thread, which must be locked.
func setThreadAffinity(cpus []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(0, &set)
}

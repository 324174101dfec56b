//go:build !linux

package iocontext

func currentThreadID() int {
	return 0
}

func setThreadAffinity([]int) error {
	return nil
}

//go:build linux

package gates

import "syscall"

// withMemoryLimit applies an address-space rlimit to the current process
// before a subprocess is forked from it (Linux inherits parent rlimits
// across fork/exec), then restores the previous limit. It is best-effort:
// callers proceed even if Setrlimit fails.
func withMemoryLimit(memoryMB int, fn func() error) error {
	if memoryMB <= 0 {
		return fn()
	}

	var prev syscall.Rlimit
	limit := syscall.Rlimit{Cur: uint64(memoryMB) * 1024 * 1024, Max: uint64(memoryMB) * 1024 * 1024}

	if err := syscall.Getrlimit(syscall.RLIMIT_AS, &prev); err == nil {
		_ = syscall.Setrlimit(syscall.RLIMIT_AS, &limit)
		defer syscall.Setrlimit(syscall.RLIMIT_AS, &prev)
	}
	return fn()
}

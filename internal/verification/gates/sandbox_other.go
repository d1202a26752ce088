//go:build !linux

package gates

import (
	"log"
)

// withMemoryLimit is a no-op outside Linux; there is no portable rlimit
// equivalent, so sandboxing degrades to running unconstrained and logging
// a warning on every call that requests a limit.
func withMemoryLimit(memoryMB int, fn func() error) error {
	if memoryMB > 0 {
		log.Println("vibesafe: sandbox memory limits are only enforced on linux; running unconstrained")
	}
	return fn()
}

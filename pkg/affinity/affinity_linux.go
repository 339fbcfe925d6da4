//go:build linux

package affinity

import "golang.org/x/sys/unix"

// PinToCore requests CPU affinity to the given core index for the calling
// OS thread. Best-effort: on failure it returns the error for the caller
// to log-and-continue (never fail the worker), per spec §9's "priority
// elevated workers ... when the host OS refuses, continue (warn, not
// fail)" note, extended here to affinity pinning.
func PinToCore(core int) error {
	if core < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	return unix.SchedSetaffinity(0, &set)
}

// RequestMaxPriority asks the OS for the highest standard scheduling
// priority (nice -20, the lowest nice value). Best-effort; most hosts
// refuse without elevated privileges.
func RequestMaxPriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, -20)
}

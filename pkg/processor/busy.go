package processor

import (
	"time"

	"rtsim/pkg/logger"
)

// busySpinUs burns roughly us microseconds of CPU time via a tight busy
// loop, modeling the deterministic computational cost spec §4.2 requires
// ("this is a core requirement — without it the 200us deadline is
// trivially met"). A sleep would yield the scheduler and under-model real
// computation, so this deliberately does not suspend.
func busySpinUs(us int) {
	if us <= 0 {
		return
	}
	deadline := time.Now().Add(time.Duration(us) * time.Microsecond)
	for time.Now().Before(deadline) {
	}
}

func logOverload(consecutive int) {
	logger.Warn("processor: systemic overload", "consecutive_overruns", consecutive)
}

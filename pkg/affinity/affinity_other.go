//go:build !linux

package affinity

import "errors"

// PinToCore is a no-op stub on non-Linux hosts; affinity pinning is a
// Linux-specific measurement lever (spec §5), not a correctness
// requirement elsewhere.
func PinToCore(core int) error {
	return errors.New("affinity: core pinning not supported on this platform")
}

// RequestMaxPriority is a no-op stub on non-Linux hosts.
func RequestMaxPriority() error {
	return errors.New("affinity: priority elevation not supported on this platform")
}

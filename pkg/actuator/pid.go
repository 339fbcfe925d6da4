// Package actuator implements the Actuator Dispatcher (C7) and Actuator
// Worker (C8), including the PID controller each worker owns.
package actuator

import "time"

// PID is a standard proportional-integral-derivative controller with
// output clamping and integral anti-windup. Plain arithmetic, justified
// as stdlib-only in DESIGN.md.
type PID struct {
	Kp, Ki, Kd     float64
	Setpoint       float64
	OutputMin      float64
	OutputMax      float64
	integral       float64
	prevError      float64
	hasPrevError   bool
}

// NewPID constructs a PID controller with the given gains, setpoint, and
// output clamp.
func NewPID(kp, ki, kd, setpoint, outMin, outMax float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd, Setpoint: setpoint, OutputMin: outMin, OutputMax: outMax}
}

// Reconfigure changes the controller's setpoint, resetting its integral
// and derivative history. Returns an error for a NaN setpoint or one whose
// magnitude exceeds 1e300 (which includes the infinities), modeling spec
// §4.5's "on failure, emit Error(pid_config_failed)" path.
func (p *PID) Reconfigure(setpoint float64) error {
	if setpoint != setpoint || setpoint > 1e300 || setpoint < -1e300 {
		return errInvalidSetpoint
	}
	p.Setpoint = setpoint
	p.integral = 0
	p.hasPrevError = false
	return nil
}

var errInvalidSetpoint = pidConfigError("pid: non-finite or out-of-range setpoint")

type pidConfigError string

func (e pidConfigError) Error() string { return string(e) }

// Compute runs one PID step given the current measured value and the time
// elapsed since the previous step, clamped by the caller to [1us, 50ms].
func (p *PID) Compute(measured float64, dt time.Duration) float64 {
	if dt <= 0 {
		dt = time.Microsecond
	}
	dtSec := dt.Seconds()

	err := p.Setpoint - measured

	proposedIntegral := p.integral + err*dtSec
	derivative := 0.0
	if p.hasPrevError {
		derivative = (err - p.prevError) / dtSec
	}
	p.prevError = err
	p.hasPrevError = true

	output := p.Kp*err + p.Ki*proposedIntegral + p.Kd*derivative

	clamped := clamp(output, p.OutputMin, p.OutputMax)
	// Anti-windup: only accumulate the integral term when the unclamped
	// output is not saturated, preventing runaway integral growth while
	// the actuator is pinned at a limit.
	if clamped == output {
		p.integral = proposedIntegral
	}
	return clamped
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

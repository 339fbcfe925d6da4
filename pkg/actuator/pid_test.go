package actuator

import (
	"testing"
	"time"
)

func TestPIDOutputRespectsLimits(t *testing.T) {
	p := NewPID(1.2, 0.01, 0.2, 100.0, -50, 50)
	for i := 0; i < 1000; i++ {
		out := p.Compute(0, time.Microsecond*100)
		if out < -50 || out > 50 {
			t.Fatalf("output %v out of bounds", out)
		}
	}
}

func TestPIDConvergesTowardSetpoint(t *testing.T) {
	p := NewPID(1.2, 0.01, 0.2, 0.0, -50, 50)
	measured := 40.0
	for i := 0; i < 500; i++ {
		out := p.Compute(measured, time.Millisecond)
		measured += out * 0.01
	}
	if absF(measured) > 5 {
		t.Fatalf("measured did not converge toward setpoint: %v", measured)
	}
}

func TestReconfigureRejectsOutOfRangeSetpoint(t *testing.T) {
	p := NewPID(1, 0, 0, 0, -1, 1)
	if err := p.Reconfigure(2e300); err == nil {
		t.Fatalf("expected error for implausible setpoint")
	}
}

package actuator

import "rtsim/pkg/types"

// WorkerSpec is one actuator worker's static configuration: name,
// setpoint, PID gains, and queue capacity, collected into a single
// compile-time table rather than hand-wired per worker.
//
// Grounded on _examples/original_source/src/component_b/multi_actuator.rs's
// static actuator roster (see SPEC_FULL.md, Supplemented Feature 3).
type WorkerSpec struct {
	Kind          types.ActuatorKind
	Setpoint      float64
	Kp, Ki, Kd    float64
	OutputMin     float64
	OutputMax     float64
	QueueCapacity int
}

// Specs is the fixed table of the three actuator workers, per spec §4.5's
// gains (Kp=1.2, Ki=0.01, Kd=0.2, limits [-50,50]) and setpoints
// (Force->100.0, Position->0.0, Temperature->25.0).
var Specs = []WorkerSpec{
	{Kind: types.ActuatorGripper, Setpoint: 100.0, Kp: 1.2, Ki: 0.01, Kd: 0.2, OutputMin: -50, OutputMax: 50, QueueCapacity: 8},
	{Kind: types.ActuatorMotor, Setpoint: 0.0, Kp: 1.2, Ki: 0.01, Kd: 0.2, OutputMin: -50, OutputMax: 50, QueueCapacity: 8},
	{Kind: types.ActuatorStabiliser, Setpoint: 25.0, Kp: 1.2, Ki: 0.01, Kd: 0.2, OutputMin: -50, OutputMax: 50, QueueCapacity: 8},
}

// Package types holds the data model shared across every stage of the
// pipeline: sensor samples, processed samples, feedback messages, and the
// raw event rows the tracer exports. Kept dependency-free so every other
// package can import it without a cycle, the same role
// pkg/models package plays for its request/response types.
package types

import "time"

// SensorKind identifies which of the three sensor channels a sample came
// from.
type SensorKind int

const (
	SensorForce SensorKind = iota
	SensorPosition
	SensorTemperature
)

func (k SensorKind) String() string {
	switch k {
	case SensorForce:
		return "force"
	case SensorPosition:
		return "position"
	case SensorTemperature:
		return "temperature"
	default:
		return "unknown"
	}
}

// ActuatorKind identifies which of the three actuator workers a dispatched
// sample targets.
type ActuatorKind int

const (
	ActuatorGripper ActuatorKind = iota
	ActuatorMotor
	ActuatorStabiliser
)

func (k ActuatorKind) String() string {
	switch k {
	case ActuatorGripper:
		return "gripper"
	case ActuatorMotor:
		return "motor"
	case ActuatorStabiliser:
		return "stabiliser"
	default:
		return "unknown"
	}
}

// RouteFor returns the actuator a given sensor kind's processed output is
// dispatched to: force->gripper, position->motor, temperature->stabiliser.
func RouteFor(k SensorKind) ActuatorKind {
	switch k {
	case SensorForce:
		return ActuatorGripper
	case SensorPosition:
		return ActuatorMotor
	case SensorTemperature:
		return ActuatorStabiliser
	default:
		return ActuatorGripper
	}
}

// SensorSample is one raw reading produced by a Sensor Task.
type SensorSample struct {
	Kind      SensorKind
	Seq       uint64
	Value     float64
	Timestamp time.Time
	JitterUs  float64
}

// ProcessedSample is the Processor Task's output: a filtered value plus
// anomaly flag, carrying enough of the original sample through for the
// actuator stage and the tracer.
type ProcessedSample struct {
	Kind        SensorKind
	Seq         uint64
	Raw         float64
	Filtered    float64
	Anomaly     bool
	SampledAt   time.Time
	ProcessedAt time.Time
}

// FeedbackKind is the tagged-union variant of FeedbackMsg: an
// acknowledgement, a reported actuator state, or an error code.
type FeedbackKind int

const (
	FeedbackAck FeedbackKind = iota
	FeedbackActuatorState
	FeedbackError
)

// Known error codes carried by FeedbackKind == FeedbackError.
const (
	ErrUnstableSensor   = "unstable_sensor"
	ErrDeadlineMiss     = "deadline_miss"
	ErrPIDConfigFailed  = "pid_config_failed"
	ErrFeedbackDeadline = "feedback_deadline_miss"
)

// FeedbackMsg flows from an Actuator Worker back to the Processor Task,
// closing the control loop.
type FeedbackMsg struct {
	Actuator  ActuatorKind
	Kind      FeedbackKind
	State     float64 // valid when Kind == FeedbackActuatorState
	ErrCode   string  // valid when Kind == FeedbackError
	Seq       uint64
	EmittedAt time.Time
}

// RawEvent is one row the Event Tracer records; Field1-3 hold
// event-specific payload so a single ring/CSV schema covers every
// component's events without per-event-type structs.
type RawEvent struct {
	Seq       uint64
	Pipeline  string
	Component string
	Event     string
	TsNs      int64
	Field1    float64
	Field2    float64
	Field3    float64
}

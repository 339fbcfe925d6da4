// Package config loads the simulation's configuration knobs (spec.md §6)
// from defaults, an optional YAML file, the environment, and command-line
// flags, merged in that order of increasing precedence — the same
// flags+env+file shape, simplified from a
// single-source-exclusive policy (appropriate for mutually exclusive API
// key sources) to a layered override (appropriate for independent numeric
// real-time knobs; see DESIGN.md).
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every core-visible configuration knob named in spec.md §6.
type Config struct {
	SensorPeriod           Duration `yaml:"sensor_period"`
	ProcessorWindow        int      `yaml:"processor_window"`
	AnomalySigma           float64  `yaml:"anomaly_sigma"`
	ProcessorDeadlineUs    int      `yaml:"processor_deadline_us"`
	ActuatorDeadlineUs     int      `yaml:"actuator_deadline_us"`
	FeedbackDeadlineUs     int      `yaml:"feedback_deadline_us"`
	BusyPhaseUs            int      `yaml:"busy_phase_us"`
	MissConfirmK           int      `yaml:"miss_confirm_k"`
	SensorQueueCapacity    int      `yaml:"sensor_queue_capacity"`
	ProcessorQueueCapacity int      `yaml:"processor_queue_capacity"`
	TransmitDropThreshold  int      `yaml:"transmit_drop_threshold"`
	ActuatorQueueCapacity  int      `yaml:"actuator_queue_capacity"`
	FeedbackQueueCapacity  int      `yaml:"feedback_queue_capacity"`
	SyncStrategy           string   `yaml:"sync_strategy"` // mutex | atomics | lockfree
	TraceRingCapacity      int      `yaml:"trace_ring_capacity"`
	LockfreeRingCapacity   int      `yaml:"lockfree_ring_capacity"`
	MetricsRingCapacity    int      `yaml:"metrics_ring_capacity"`
	SharedCore             int      `yaml:"shared_core"` // -1 disables affinity pinning
	Duration               Duration `yaml:"duration"`
	CPULoadThreads         int      `yaml:"cpu_load_threads"` // external stressor knob, recorded not driven
	OutputDir              string   `yaml:"output_dir"`
}

// Default returns the configuration spec.md's component sections use as
// their "default" values (T=5ms, W=10, D=200us, D_act=2000us, ...).
func Default() Config {
	return Config{
		SensorPeriod:           Duration(5 * time.Millisecond),
		ProcessorWindow:        10,
		AnomalySigma:           3.0,
		ProcessorDeadlineUs:    200,
		ActuatorDeadlineUs:     2000,
		FeedbackDeadlineUs:     500,
		BusyPhaseUs:            110,
		MissConfirmK:           3,
		SensorQueueCapacity:    2048,
		ProcessorQueueCapacity: 1024,
		TransmitDropThreshold:  1024,
		ActuatorQueueCapacity:  8,
		FeedbackQueueCapacity:  64,
		SyncStrategy:           "mutex",
		TraceRingCapacity:      16384,
		LockfreeRingCapacity:   8192,
		MetricsRingCapacity:    1000,
		SharedCore:             -1,
		Duration:               Duration(30 * time.Second),
		CPULoadThreads:         0,
		OutputDir:              ".",
	}
}

// Validate rejects configurations that would make the pipeline meaningless
// (e.g. an unknown sync strategy) without touching the real-time path.
func (c Config) Validate() error {
	switch c.SyncStrategy {
	case "mutex", "atomics", "lockfree":
	default:
		return fmt.Errorf("config: unknown sync_strategy %q (want mutex, atomics, or lockfree)", c.SyncStrategy)
	}
	if c.ProcessorWindow < 0 {
		return fmt.Errorf("config: processor_window must be >= 0")
	}
	return nil
}

// FlagSet describes the flags ParseFlags registers, so callers (and tests)
// can parse a custom argv without touching the process's os.Args.
func FlagSet(name string) (*flag.FlagSet, *Config) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &Config{}
	fs.DurationVar((*time.Duration)(&c.SensorPeriod), "sensor-period", 0, "sensor sampling period")
	fs.IntVar(&c.ProcessorWindow, "window", 0, "processor moving-average window size")
	fs.Float64Var(&c.AnomalySigma, "anomaly-sigma", 0, "anomaly detection sigma threshold")
	fs.IntVar(&c.ProcessorDeadlineUs, "processor-deadline-us", 0, "processor cycle deadline (microseconds)")
	fs.IntVar(&c.ActuatorDeadlineUs, "actuator-deadline-us", 0, "actuator cycle deadline (microseconds)")
	fs.IntVar(&c.FeedbackDeadlineUs, "feedback-deadline-us", 0, "feedback emission deadline (microseconds)")
	fs.IntVar(&c.BusyPhaseUs, "busy-phase-us", 0, "simulated processor computation cost (microseconds)")
	fs.IntVar(&c.SensorQueueCapacity, "sensor-queue-capacity", 0, "sensor->processor queue capacity")
	fs.IntVar(&c.ProcessorQueueCapacity, "processor-queue-capacity", 0, "processor->actuator queue capacity")
	fs.IntVar(&c.TransmitDropThreshold, "transmit-drop-threshold", 0, "transmitter backpressure threshold")
	fs.IntVar(&c.ActuatorQueueCapacity, "actuator-queue-capacity", 0, "per-actuator queue capacity")
	fs.StringVar(&c.SyncStrategy, "sync-strategy", "", "telemetry sync strategy: mutex, atomics, lockfree")
	fs.IntVar(&c.SharedCore, "shared-core", -2, "shared core index for affinity pinning (-1 disables)")
	fs.DurationVar((*time.Duration)(&c.Duration), "duration", 0, "simulation wall-clock duration")
	fs.IntVar(&c.CPULoadThreads, "cpu-load-threads", 0, "background CPU contention level (recorded, not driven)")
	fs.StringVar(&c.OutputDir, "output-dir", "", "directory for telemetry/trace CSV output")
	return fs, c
}

// ParseFlags parses argv (excluding the program name) and returns the
// sparse overrides the caller set plus which flags were explicitly set.
func ParseFlags(argv []string) (Config, map[string]bool, error) {
	fs, c := FlagSet("rtsim")
	if err := fs.Parse(argv); err != nil {
		return Config{}, nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *c, set, nil
}

// ParseFile loads a YAML config file. A missing file is not an error; the
// second return reports whether a file was actually found and parsed.
func ParseFile(path string) (Config, bool, error) {
	if path == "" {
		return Config{}, false, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}
		return Config{}, false, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, false, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, true, nil
}

var envPrefix = "RTSIM_"

// ParseEnv reads RTSIM_* environment variables, returning the same sparse
// overrides + set-map shape as ParseFlags.
func ParseEnv() (Config, map[string]bool) {
	var c Config
	set := map[string]bool{}
	str := func(name string) (string, bool) {
		v, ok := os.LookupEnv(envPrefix + name)
		return v, ok
	}
	if v, ok := str("SENSOR_PERIOD"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.SensorPeriod = Duration(d)
			set["sensor-period"] = true
		}
	}
	if v, ok := str("WINDOW"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.ProcessorWindow = n
			set["window"] = true
		}
	}
	if v, ok := str("ANOMALY_SIGMA"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AnomalySigma = f
			set["anomaly-sigma"] = true
		}
	}
	if v, ok := str("SYNC_STRATEGY"); ok {
		c.SyncStrategy = strings.ToLower(strings.TrimSpace(v))
		set["sync-strategy"] = true
	}
	if v, ok := str("DURATION"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Duration = Duration(d)
			set["duration"] = true
		}
	}
	if v, ok := str("SHARED_CORE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.SharedCore = n
			set["shared-core"] = true
		}
	}
	if v, ok := str("CPU_LOAD_THREADS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.CPULoadThreads = n
			set["cpu-load-threads"] = true
		}
	}
	if v, ok := str("OUTPUT_DIR"); ok {
		c.OutputDir = v
		set["output-dir"] = true
	}
	return c, set
}

// LoadEffective merges defaults < file < env < flags into one Config.
func LoadEffective(flagCfg Config, flagSet map[string]bool, fileCfg Config, fileExists bool, envCfg Config, envSet map[string]bool) Config {
	eff := Default()
	if fileExists {
		eff = overlay(eff, fileCfg, allFieldsSet())
	}
	eff = overlay(eff, envCfg, envSet)
	eff = overlay(eff, flagCfg, flagSet)
	return eff
}

// allFieldsSet treats a parsed file as authoritative for every field it
// could plausibly contain; fields the file leaves unset are harmless since
// ParseFile decodes the YAML on top of Default(), so they carry the default
// values into the file pass of the overlay (see LoadEffective).
func allFieldsSet() map[string]bool {
	return map[string]bool{
		"sensor-period": true, "window": true, "anomaly-sigma": true,
		"processor-deadline-us": true, "actuator-deadline-us": true, "feedback-deadline-us": true,
		"busy-phase-us": true, "miss-confirm-k": true,
		"sensor-queue-capacity": true, "processor-queue-capacity": true, "transmit-drop-threshold": true,
		"actuator-queue-capacity": true, "feedback-queue-capacity": true, "sync-strategy": true,
		"trace-ring-capacity": true, "lockfree-ring-capacity": true, "metrics-ring-capacity": true,
		"shared-core": true, "duration": true, "cpu-load-threads": true, "output-dir": true,
	}
}

func overlay(base, override Config, set map[string]bool) Config {
	if set["sensor-period"] {
		base.SensorPeriod = override.SensorPeriod
	}
	if set["window"] {
		base.ProcessorWindow = override.ProcessorWindow
	}
	if set["anomaly-sigma"] {
		base.AnomalySigma = override.AnomalySigma
	}
	if set["processor-deadline-us"] {
		base.ProcessorDeadlineUs = override.ProcessorDeadlineUs
	}
	if set["actuator-deadline-us"] {
		base.ActuatorDeadlineUs = override.ActuatorDeadlineUs
	}
	if set["feedback-deadline-us"] {
		base.FeedbackDeadlineUs = override.FeedbackDeadlineUs
	}
	if set["busy-phase-us"] {
		base.BusyPhaseUs = override.BusyPhaseUs
	}
	if set["miss-confirm-k"] {
		base.MissConfirmK = override.MissConfirmK
	}
	if set["sensor-queue-capacity"] {
		base.SensorQueueCapacity = override.SensorQueueCapacity
	}
	if set["processor-queue-capacity"] {
		base.ProcessorQueueCapacity = override.ProcessorQueueCapacity
	}
	if set["transmit-drop-threshold"] {
		base.TransmitDropThreshold = override.TransmitDropThreshold
	}
	if set["actuator-queue-capacity"] {
		base.ActuatorQueueCapacity = override.ActuatorQueueCapacity
	}
	if set["feedback-queue-capacity"] {
		base.FeedbackQueueCapacity = override.FeedbackQueueCapacity
	}
	if set["sync-strategy"] && override.SyncStrategy != "" {
		base.SyncStrategy = override.SyncStrategy
	}
	if set["trace-ring-capacity"] {
		base.TraceRingCapacity = override.TraceRingCapacity
	}
	if set["lockfree-ring-capacity"] {
		base.LockfreeRingCapacity = override.LockfreeRingCapacity
	}
	if set["metrics-ring-capacity"] {
		base.MetricsRingCapacity = override.MetricsRingCapacity
	}
	if set["shared-core"] {
		base.SharedCore = override.SharedCore
	}
	if set["duration"] {
		base.Duration = override.Duration
	}
	if set["cpu-load-threads"] {
		base.CPULoadThreads = override.CPULoadThreads
	}
	if set["output-dir"] && override.OutputDir != "" {
		base.OutputDir = override.OutputDir
	}
	return base
}

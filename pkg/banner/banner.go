// Package banner prints the one-time startup summary cmd/rtsim shows
// before a run begins: the effective configuration and where its output
// lands.
package banner

import (
	"fmt"

	"rtsim/pkg/config"
)

const art = `
 ___  _____ ___ ___ __  __
| _ \|_   _/ __|_ _|  \/  |
|   /  | | \__ \| || |\/| |
|_|_\  |_| |___/___|_|  |_|
`

// Print renders the startup banner for the effective configuration eff.
func Print(eff config.Config) {
	fmt.Print(art)
	fmt.Println("== Pipeline ===================================================")
	fmt.Printf("Sensor period:       %s\n", eff.SensorPeriod.Duration())
	fmt.Printf("Processor window:    %d\n", eff.ProcessorWindow)
	fmt.Printf("Anomaly sigma:       %g\n", eff.AnomalySigma)
	fmt.Printf("Processor deadline:  %dus\n", eff.ProcessorDeadlineUs)
	fmt.Printf("Actuator deadline:   %dus\n", eff.ActuatorDeadlineUs)
	fmt.Printf("Feedback deadline:   %dus\n", eff.FeedbackDeadlineUs)
	fmt.Printf("Sync strategy:       %s\n", eff.SyncStrategy)
	fmt.Printf("Duration:            %s\n", eff.Duration.Duration())
	fmt.Printf("CPU load threads:    %d (recorded, not driven)\n", eff.CPULoadThreads)
	fmt.Println("== Output ======================================================")
	fmt.Printf("Directory:           %s\n", eff.OutputDir)
	fmt.Println("  events.csv         - Event Tracer rows")
	fmt.Println("  sync.csv           - lock-free sync log (lockfree strategy only)")
	fmt.Println("  sweep_summary.csv  - one-line run summary")
	fmt.Println()
}

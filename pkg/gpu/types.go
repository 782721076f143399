// Package gpu implements the GPU Work Scheduler (C8): mutual-exclusion
// arbitration for GPU-resident jobs so an LLM inference worker and an
// OCR-VL escalation worker never run on the same device at once (spec.md
// §4.8).
package gpu

import "time"

// Class identifies a GPU-contended job class. The invariant this package
// enforces: for a given GPU, at most one of these classes holds the
// exclusive lock at any moment.
type Class string

const (
	ClassLLMPrimary Class = "llm-primary"
	ClassOCRVL      Class = "ocr-vl"
)

// DeviceConfig declares one GPU and the classes it may run, read from
// `gpu.devices[].{id, classes}`.
type DeviceConfig struct {
	ID      string  `yaml:"id"`
	Classes []Class `yaml:"classes"`
}

// Config tunes the scheduler.
type Config struct {
	Devices        []DeviceConfig `yaml:"devices"`
	AcquireTimeout time.Duration  `yaml:"acquire_timeout"`
}

// SetDefaults fills in the default acquire timeout (spec.md §4.8: "Default
// timeout on acquire: 60s").
func (c *Config) SetDefaults() {
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 60 * time.Second
	}
}

// HolderInfo describes the job currently holding a device's lock.
type HolderInfo struct {
	Class      Class     `json:"class"`
	LeaseID    string    `json:"lease_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// DeviceStatus is one GPU's snapshot for status().
type DeviceStatus struct {
	GPUID      string       `json:"gpu_id"`
	Holder     *HolderInfo  `json:"holder,omitempty"`
	QueueDepth map[Class]int `json:"queue_depth"`
}

// Package spec defines the execution specification and resource limits.
package spec

// ResourceLimit describes hard limits enforced by the container runtime.
type ResourceLimit struct {
	WallTimeMs int64   `yaml:"wallTimeMs"`
	MemoryMB   int64   `yaml:"memoryMB"`
	CPUs       float64 `yaml:"cpus"`
	PIDs       int64   `yaml:"pids"`
}

// Merge returns base with every positive field of override applied.
func (base ResourceLimit) Merge(override ResourceLimit) ResourceLimit {
	if override.WallTimeMs > 0 {
		base.WallTimeMs = override.WallTimeMs
	}
	if override.MemoryMB > 0 {
		base.MemoryMB = override.MemoryMB
	}
	if override.CPUs > 0 {
		base.CPUs = override.CPUs
	}
	if override.PIDs > 0 {
		base.PIDs = override.PIDs
	}
	return base
}

// RunSpec is the unified execution specification for one sandbox invocation.
type RunSpec struct {
	JobID string
	// HostDir is the workspace directory mounted into the container.
	HostDir string
	Image   string
	Cmd     []string
	Stdin   string
	Limits  ResourceLimit
}

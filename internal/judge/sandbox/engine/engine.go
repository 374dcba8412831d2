// Package engine runs one sandbox container under a wall-clock watchdog and
// collects its bounded output.
package engine

import (
	"context"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
)

// Engine executes a RunSpec inside an isolated sandbox.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}

const (
	defaultNetwork          = "none"
	defaultMountTarget      = "/app"
	defaultKillGraceMs      = 500
	defaultOutputLimitBytes = 50000
	defaultWallTimeMs       = 5000
	defaultMemoryMB         = 256
	defaultCPUs             = 0.5
	defaultContainerPrefix  = "judge-"
)

// Config controls sandbox engine behavior.
type Config struct {
	// Host overrides DOCKER_HOST, e.g. unix:///var/run/docker.sock.
	Host             string
	Network          string
	MountTarget      string
	ContainerPrefix  string
	KillGraceMs      int64
	OutputLimitBytes int
	Limits           spec.ResourceLimit
	CapDrop          []string
	SecurityOpt      []string
}

// DefaultLimits returns the reference per-invocation limits.
func DefaultLimits() spec.ResourceLimit {
	return spec.ResourceLimit{
		WallTimeMs: defaultWallTimeMs,
		MemoryMB:   defaultMemoryMB,
		CPUs:       defaultCPUs,
	}
}

func (c Config) withDefaults() Config {
	if c.Network == "" {
		c.Network = defaultNetwork
	}
	if c.MountTarget == "" {
		c.MountTarget = defaultMountTarget
	}
	if c.ContainerPrefix == "" {
		c.ContainerPrefix = defaultContainerPrefix
	}
	if c.KillGraceMs <= 0 {
		c.KillGraceMs = defaultKillGraceMs
	}
	if c.OutputLimitBytes <= 0 {
		c.OutputLimitBytes = defaultOutputLimitBytes
	}
	c.Limits = DefaultLimits().Merge(c.Limits)
	return c
}

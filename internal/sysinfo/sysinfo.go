// Package sysinfo reports the host and the process footprint for run logs.
package sysinfo

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"
)

// Host describes the machine the benchmark runs on.
type Host struct {
	OS              string
	Platform        string
	PlatformVersion string
	KernelArch      string
}

// HostInfo queries the operating system.
func HostInfo(ctx context.Context) (Host, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return Host{}, fmt.Errorf("failed to read host info: %w", err)
	}
	return Host{
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelArch:      info.KernelArch,
	}, nil
}

// LogValue implements slog.LogValuer.
func (h Host) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("os", h.OS),
		slog.String("platform", h.Platform),
		slog.String("version", h.PlatformVersion),
		slog.String("arch", h.KernelArch),
	)
}

// RSS returns the resident set size of the current process in bytes.
func RSS(ctx context.Context) (uint64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("failed to open process: %w", err)
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read memory info: %w", err)
	}
	return mem.RSS, nil
}

// Package sysinfo reads host statistics for the SystemStatus reply.
package sysinfo

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/BryanFRD/admin-api/internal/protocol"
)

// Reader produces host snapshots.
type Reader interface {
	Snapshot(ctx context.Context) (protocol.SystemStatus, error)
}

// Host reads the machine the relay runs on.
type Host struct{}

// Snapshot gathers host identity, CPU, memory and load. Only the host and
// memory probes are required; CPU and load are best effort since some
// platforms do not expose them.
func (Host) Snapshot(ctx context.Context) (protocol.SystemStatus, error) {
	var out protocol.SystemStatus

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return out, fmt.Errorf("host info: %w", err)
	}
	out.Hostname = info.Hostname
	out.Platform = info.Platform + " " + info.PlatformVersion
	out.KernelVersion = info.KernelVersion
	out.Uptime = info.Uptime

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return out, fmt.Errorf("memory: %w", err)
	}
	out.MemoryTotal = vm.Total
	out.MemoryUsed = vm.Used
	out.MemoryPercent = vm.UsedPercent

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		out.CPUCount = n
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		out.CPUPercent = pct[0]
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		out.Load1, out.Load5, out.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	return out, nil
}

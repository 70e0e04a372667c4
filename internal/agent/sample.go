package agent

import (
	"context"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"
)

// Reading is one host sample. CPUTemp is nil when no temperature sensor is
// readable, so "unavailable" never leaks into arithmetic as NaN.
// NetTotalBytes is the cumulative sent+received counter; the agent loop
// turns deltas into a rate.
type Reading struct {
	CPUCores      int
	RAMUsed       int64
	RAMTotal      int64
	StorageUsed   int64
	StorageTotal  int64
	CPUTemp       *float64
	NetTotalBytes int64
}

// Sample gathers all gauges. Individual collector failures degrade the
// affected fields instead of failing the whole sample.
func Sample(ctx context.Context, diskPath string) Reading {
	r := Reading{CPUCores: cpuCores(ctx)}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		r.RAMUsed = int64(vm.Used)
		r.RAMTotal = int64(vm.Total)
	}
	if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		r.StorageUsed = int64(du.Used)
		r.StorageTotal = int64(du.Total)
	}
	r.CPUTemp = cpuTemp(ctx)
	if io, err := gnet.IOCountersWithContext(ctx, false); err == nil && len(io) > 0 {
		r.NetTotalBytes = int64(io[0].BytesSent + io[0].BytesRecv)
	}
	return r
}

func cpuCores(ctx context.Context) int {
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// cpuTemp averages the temperature sensors, restricted to the coretemp
// hwmon group when one is present.
func cpuTemp(ctx context.Context) *float64 {
	stats, err := sensors.TemperaturesWithContext(ctx)
	if err != nil || len(stats) == 0 {
		return nil
	}
	core := make([]float64, 0, len(stats))
	all := make([]float64, 0, len(stats))
	for _, s := range stats {
		if s.Temperature == 0 {
			continue
		}
		all = append(all, s.Temperature)
		if strings.Contains(strings.ToLower(s.SensorKey), "coretemp") {
			core = append(core, s.Temperature)
		}
	}
	vals := core
	if len(vals) == 0 {
		vals = all
	}
	if len(vals) == 0 {
		return nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	avg := sum / float64(len(vals))
	return &avg
}

// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package system

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostStats is a point-in-time view of the machine. Fields gopsutil cannot
// read on the current platform stay zero.
type HostStats struct {
	Hostname        string  `json:"hostname"`
	OS              string  `json:"os"`
	Platform        string  `json:"platform"`
	PlatformVersion string  `json:"platform_version"`
	KernelVersion   string  `json:"kernel_version"`
	CPUCount        int     `json:"cpu_count"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryTotal     uint64  `json:"memory_total"`
	MemoryUsed      uint64  `json:"memory_used"`
	MemoryPercent   float64 `json:"memory_percent"`
	DiskTotal       uint64  `json:"disk_total"`
	DiskFree        uint64  `json:"disk_free"`
	DiskPercent     float64 `json:"disk_percent"`
	Uptime          string  `json:"uptime"`
	UptimeSeconds   uint64  `json:"uptime_seconds"`
}

// CollectHost samples CPU, memory, disk (for the filesystem holding
// diskPath) and uptime. The CPU sample blocks for sampleWindow; zero means
// "since the previous call".
func CollectHost(ctx context.Context, diskPath string, sampleWindow time.Duration) HostStats {
	s := HostStats{OS: runtime.GOOS, CPUCount: runtime.NumCPU()}
	if info, err := host.InfoWithContext(ctx); err == nil {
		s.Hostname = info.Hostname
		s.Platform = info.Platform
		s.PlatformVersion = info.PlatformVersion
		s.KernelVersion = info.KernelVersion
		s.UptimeSeconds = info.Uptime
	} else if h, err := os.Hostname(); err == nil {
		s.Hostname = h
	}
	if pct, err := cpu.PercentWithContext(ctx, sampleWindow, false); err == nil && len(pct) > 0 {
		s.CPUPercent = round2(pct[0])
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemoryTotal, s.MemoryUsed = vm.Total, vm.Used
		s.MemoryPercent = round2(vm.UsedPercent)
	}
	if diskPath == "" {
		diskPath = "/"
	}
	if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		s.DiskTotal, s.DiskFree = du.Total, du.Free
		s.DiskPercent = round2(du.UsedPercent)
	}
	s.Uptime = FormatUptime(time.Duration(s.UptimeSeconds) * time.Second)
	return s
}

// FormatUptime renders d as "3 days, 4 hours" style text.
func FormatUptime(d time.Duration) string {
	if d <= 0 {
		return "unknown"
	}
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now.Add(-d), now, "", ""))
}

// GoMemory returns the Go heap in use and the total obtained from the OS.
func GoMemory() (alloc, sys uint64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Alloc, ms.Sys
}

// FormatBytes renders n in IEC units.
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// Hostname returns the machine name, or "unknown".
func Hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

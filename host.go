package main

import (
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

type SysInfo struct {
	Arch     string
	Hostname string
	Platform string
	CPUCount int
	CPUFreq  float64
	RAM      float64
}

func HostStat() SysInfo {
	info := SysInfo{Arch: runtime.GOARCH, CPUCount: AvailableCores()}
	if hostStat, err := host.Info(); err == nil {
		info.Hostname = hostStat.Hostname
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		totalFreq := 0.0
		for _, cpu := range cpuStat {
			totalFreq += cpu.Mhz
		}
		info.CPUFreq = totalFreq / float64(len(cpuStat)) * 1000
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = float64(vmStat.Total) / 1024 / 1024 / 1024
	}
	return info
}

func (i SysInfo) Meta() map[string]any {
	return map[string]any{
		"arch":     i.Arch,
		"hostname": i.Hostname,
		"platform": i.Platform,
		"ram":      i.RAM,
		"cpu":      i.CPUCount,
		"freq":     i.CPUFreq,
	}
}

package task

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// preflight checks system resources before a task starts fetching and
// packaging. A zero threshold disables the corresponding check; probe
// errors are ignored rather than failing the task.
func (m *Manager) preflight() error {
	if m.cfg.ThrottleCPU > 0 {
		if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
			if percents[0] > m.cfg.ThrottleCPU {
				return fmt.Errorf("cpu usage %.1f%% above %.1f%% limit", percents[0], m.cfg.ThrottleCPU)
			}
		}
	}
	if m.cfg.ThrottleFreeMem > 0 {
		if vm, err := mem.VirtualMemory(); err == nil {
			if vm.Available < uint64(m.cfg.ThrottleFreeMem) {
				return fmt.Errorf("free memory %d below %d limit", vm.Available, m.cfg.ThrottleFreeMem)
			}
		}
	}
	if m.cfg.ThrottleFreeDisk > 0 {
		if du, err := disk.Usage(m.cfg.DataDir); err == nil {
			if du.Free < uint64(m.cfg.ThrottleFreeDisk) {
				return fmt.Errorf("free disk %d below %d limit", du.Free, m.cfg.ThrottleFreeDisk)
			}
		}
	}
	return nil
}

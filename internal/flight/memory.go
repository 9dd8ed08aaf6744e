// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flight

import (
	"time"

	"github.com/shirou/gopsutil/mem"
)

// MemoryReport is a free-memory sample.
type MemoryReport struct {
	Total     uint64
	Available uint64
	Sampled   time.Time
}

// MemoryProbe samples host memory.
type MemoryProbe func() (MemoryReport, error)

// HostMemory reads virtual memory statistics of the host.
func HostMemory() (MemoryReport, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemoryReport{}, err
	}
	return MemoryReport{Total: vm.Total, Available: vm.Available}, nil
}

func (c *Core) reportMemory(now time.Time) {
	interval := c.cfg.Scheduler.MemoryInterval
	if interval <= 0 || now.Sub(c.lastMemory) < interval {
		return
	}
	c.lastMemory = now

	r, err := c.mem()
	if err != nil {
		c.log.Debug("memory probe: %v", err)
		return
	}
	r.Sampled = now
	c.mu.Lock()
	c.memReport = r
	c.mu.Unlock()
	c.log.Debug("free memory: %d of %d KiB", r.Available/1024, r.Total/1024)
}

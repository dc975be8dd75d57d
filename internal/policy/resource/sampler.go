// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

const defaultSampleInterval = 5 * time.Second

// Provider reads one host sample.
type Provider func(ctx context.Context) (Sample, error)

// ReadHost samples available memory and overall CPU usage since the last call.
func ReadHost(ctx context.Context) (Sample, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("read memory: %w", err)
	}
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Sample{}, fmt.Errorf("read cpu: %w", err)
	}
	s := Sample{AvailableMemoryMB: vm.Available / (1024 * 1024)}
	if len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	return s, nil
}

// RunSampler feeds m from provider every interval until ctx is done. The
// first sample is taken immediately.
func RunSampler(ctx context.Context, m *Monitor, interval time.Duration, provider Provider) error {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	if provider == nil {
		provider = ReadHost
	}

	sample := func() {
		s, err := provider(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Debug().Err(err).Msg("host sample failed")
				sampleErrorsTotal.Inc()
			}
			return
		}
		m.Observe(s)
	}

	sample()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sample()
		}
	}
}

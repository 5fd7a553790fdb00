// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/wavetermdev/snipgallery/pkg/gstore"
	"github.com/wavetermdev/snipgallery/pkg/snipbase"
)

type HealthInfo struct {
	Status      string  `json:"status"`
	Version     string  `json:"version"`
	UptimeSec   int64   `json:"uptimesec"`
	Goroutines  int     `json:"goroutines"`
	Components  int     `json:"components"`
	Previews    int     `json:"previews"`
	RSSBytes    uint64  `json:"rssbytes,omitempty"`
	CPUPercent  float64 `json:"cpupercent,omitempty"`
	MemUsedPct  float64 `json:"memusedpct,omitempty"`
	StoreStatus string  `json:"storestatus"`
}

// process stats are best effort, gopsutil failures only leave fields empty
func (s *Server) handleHealth(r *http.Request) (any, error) {
	info := &HealthInfo{
		Status:      "ok",
		Version:     snipbase.SnipVersion,
		UptimeSec:   int64(time.Since(s.started) / time.Second),
		Goroutines:  runtime.NumGoroutine(),
		Previews:    s.previews.Len(),
		StoreStatus: "ok",
	}
	count, err := gstore.DBCountComponents(r.Context())
	if err != nil {
		info.Status = "degraded"
		info.StoreStatus = err.Error()
	}
	info.Components = count
	proc, err := process.NewProcessWithContext(r.Context(), int32(os.Getpid()))
	if err == nil {
		if memInfo, err := proc.MemoryInfoWithContext(r.Context()); err == nil {
			info.RSSBytes = memInfo.RSS
		}
		if cpuPct, err := proc.CPUPercentWithContext(r.Context()); err == nil {
			info.CPUPercent = cpuPct
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		info.MemUsedPct = vm.UsedPercent
	}
	return info, nil
}

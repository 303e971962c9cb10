package executor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// watchMemory samples the resident memory of pid and its descendants and
// sends the observed total once it goes above limit
func watchMemory(ctx context.Context, pid int, limit uint64, interval time.Duration) <-chan uint64 {
	exceeded := make(chan uint64, 1)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rss := treeRSS(ctx, int32(pid))
				if rss > limit {
					exceeded <- rss
					return
				}
			}
		}
	}()
	return exceeded
}

func treeRSS(ctx context.Context, pid int32) uint64 {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0
	}
	var total uint64
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		total += mem.RSS
	}
	children, err := p.ChildrenWithContext(ctx)
	if err != nil {
		return total
	}
	for _, child := range children {
		total += treeRSS(ctx, child.Pid)
	}
	return total
}

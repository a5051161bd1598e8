package browser

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// perContextMemory is the assumed memory cost of one open browser context.
const perContextMemory = 100 << 20 // 100 MB

// ResourceMonitor derives a safe open-context ceiling from available
// system memory, so a loaded host lowers the pool's tolerance before the
// kernel's OOM killer does. Readings are cached briefly because
// VirtualMemory is not free.
type ResourceMonitor struct {
	// ReserveMemory is kept free for the rest of the system. Default: 512 MB.
	ReserveMemory uint64

	// CacheTTL is how long a ceiling computation stays valid. Default: 5s.
	CacheTTL time.Duration

	mu       sync.Mutex
	cached   int
	cachedAt time.Time
}

// NewResourceMonitor creates a monitor with defaults.
func NewResourceMonitor() *ResourceMonitor {
	return &ResourceMonitor{
		ReserveMemory: 512 << 20,
		CacheTTL:      5 * time.Second,
	}
}

// ContextCeiling returns the effective context limit: the configured max,
// capped by how many contexts fit in available memory after the reserve.
// Never below 1 so the pool can always make progress.
func (m *ResourceMonitor) ContextCeiling(configuredMax int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.cachedAt) < m.CacheTTL && m.cached > 0 {
		return min(m.cached, configuredMax)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		slog.Warn("resource monitor: reading system memory failed", "error", err)
		return configuredMax
	}

	usable := int64(vm.Available) - int64(m.ReserveMemory)
	ceiling := int(usable / perContextMemory)
	if ceiling < 1 {
		ceiling = 1
	}

	m.cached = ceiling
	m.cachedAt = time.Now()
	return min(ceiling, configuredMax)
}

package game

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"xqmahjong/common/log"
)

// Monitor 负载监控：定期采样房间数 / 玩家数 / CPU
// 采样结果进日志，并提供给监控 HTTP 端点
type Monitor struct {
	roomManager    *RoomManager
	updateInterval time.Duration
	stopCh         chan struct{}
	stopOnce       sync.Once

	mu      sync.RWMutex
	rooms   int
	players int
	cpuPct  float64
}

func NewMonitor(roomManager *RoomManager, updateInterval time.Duration) *Monitor {
	return &Monitor{
		roomManager:    roomManager,
		updateInterval: updateInterval,
		stopCh:         make(chan struct{}),
	}
}

// Report 周期采样，阻塞运行在独立 goroutine
func (m *Monitor) Report(ctx context.Context) {
	ticker := time.NewTicker(m.updateInterval)
	defer ticker.Stop()

	m.collect()
	for {
		select {
		case <-ctx.Done():
			log.Info("Monitor 收到停止信号，退出监控")
			return
		case <-m.stopCh:
			log.Info("Monitor 收到停止信号，退出监控")
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// Stats 最近一次采样值（监控端点用）
func (m *Monitor) Stats() (rooms int, players int, cpuPct float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms, m.players, m.cpuPct
}

func (m *Monitor) collect() {
	rooms, players := m.roomManager.GetStats()
	cpuPct := m.cpuUsage()

	m.mu.Lock()
	m.rooms = rooms
	m.players = players
	m.cpuPct = cpuPct
	m.mu.Unlock()

	log.Debug("Monitor 采样: rooms=%d, players=%d, cpu=%.2f%%", rooms, players, cpuPct)
}

// cpuUsage 整机 CPU 平均使用率，200ms 采样窗口
func (m *Monitor) cpuUsage() float64 {
	percentages, err := cpu.Percent(200*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		return 0.0
	}
	v := percentages[0]
	if v > 100.0 {
		v = 100.0
	}
	if v < 0.0 {
		v = 0.0
	}
	return v
}

package monitoring

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/isdelr/quill-be/internal/models"
	"github.com/isdelr/quill-be/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
)

// StatsUpdatedAction is broadcast on the live feed after every sample.
const StatsUpdatedAction = "stats.updated"

// StatUpdater periodically samples content counts and process usage.
type StatUpdater struct {
	postSvc     services.PostServiceProvider
	broadcaster services.Broadcaster
	interval    time.Duration
	proc        *process.Process

	mu     sync.RWMutex
	latest models.Stats
	ready  bool

	done chan struct{}
}

// NewStatUpdater creates a new StatUpdater. broadcaster may be nil.
func NewStatUpdater(postSvc services.PostServiceProvider, broadcaster services.Broadcaster, interval time.Duration) *StatUpdater {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Process stats unavailable")
	}
	return &StatUpdater{
		postSvc:     postSvc,
		broadcaster: broadcaster,
		interval:    interval,
		proc:        proc,
		done:        make(chan struct{}),
	}
}

// Run starts the periodic updates.
func (su *StatUpdater) Run() {
	log.Info().Dur("interval", su.interval).Msg("Starting background stat updater...")
	ticker := time.NewTicker(su.interval)
	defer ticker.Stop()

	// Run once immediately on start
	su.Collect()

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater.")
			return
		case <-ticker.C:
			su.Collect()
		}
	}
}

// Stop halts the periodic updates.
func (su *StatUpdater) Stop() {
	close(su.done)
}

// Latest returns the most recent snapshot; ok is false before the first successful sample.
func (su *StatUpdater) Latest() (models.Stats, bool) {
	su.mu.RLock()
	defer su.mu.RUnlock()
	return su.latest, su.ready
}

// Collect takes one sample.
func (su *StatUpdater) Collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts, err := su.postSvc.CountContent(ctx)
	if err != nil {
		log.Error().Err(err).Msg("StatUpdater: Failed to count content")
		return
	}

	snapshot := models.Stats{
		Content:     counts,
		Process:     su.processUsage(ctx),
		CollectedAt: time.Now().UTC(),
	}

	su.mu.Lock()
	su.latest = snapshot
	su.ready = true
	su.mu.Unlock()

	if su.broadcaster != nil {
		su.broadcaster.BroadcastAll(StatsUpdatedAction, snapshot)
	}
}

func (su *StatUpdater) processUsage(ctx context.Context) models.ProcessUsage {
	usage := models.ProcessUsage{Goroutines: runtime.NumGoroutine()}
	if su.proc == nil {
		return usage
	}

	if cpu, err := su.proc.CPUPercentWithContext(ctx); err == nil {
		usage.CPUPercent = cpu
	} else {
		log.Debug().Err(err).Msg("StatUpdater: Could not read CPU usage")
	}
	if mem, err := su.proc.MemoryInfoWithContext(ctx); err == nil {
		usage.RSSBytes = mem.RSS
	} else {
		log.Debug().Err(err).Msg("StatUpdater: Could not read memory usage")
	}
	return usage
}

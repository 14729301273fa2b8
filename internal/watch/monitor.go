// Package watch alerts when a harness log file stops growing. Long
// campaigns run unattended; a board that wedges mid-campaign shows up as
// a log that is still open but no longer written.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// AlertFunc is invoked when the watched file has been silent for longer
// than the alert interval. stale is how long the file has been silent.
type AlertFunc func(path string, stale time.Duration)

// Monitor watches one log file for write activity. Writes are observed
// through fsnotify; a ticker checks the time since the last write and
// fires the alert callback when it exceeds AlertInterval. Alerts repeat
// every interval while the file stays stuck.
type Monitor struct {
	// AlertInterval is how long the file may stay unchanged before an
	// alert fires. Zero means DefaultAlertInterval.
	AlertInterval time.Duration
	// OnAlert is called on every alert. Nil means log-only alerts.
	OnAlert AlertFunc

	logger *zap.Logger

	mu        sync.Mutex
	lastWrite time.Time
	stuck     bool
}

// DefaultAlertInterval matches the cadence a human babysitting a board
// would notice a hang at.
const DefaultAlertInterval = 50 * time.Second

func NewMonitor(interval time.Duration, onAlert AlertFunc, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultAlertInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		AlertInterval: interval,
		OnAlert:       onAlert,
		logger:        logger,
	}
}

// Run watches path until the context is cancelled. It returns an error
// if the file does not exist or the watcher cannot be created; after a
// successful start it only returns ctx.Err().
func (m *Monitor) Run(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat watched file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, want a log file", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and harnesses often
	// replace files instead of appending, which drops file watches.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	m.mu.Lock()
	m.lastWrite = time.Now()
	m.stuck = false
	m.mu.Unlock()

	m.logger.Info("monitoring started",
		zap.String("path", path),
		zap.Duration("alert_interval", m.AlertInterval))

	// Poll at a fraction of the interval so alerts fire close to the
	// configured deadline rather than up to one interval late.
	tick := m.AlertInterval / 5
	if tick < 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	target := filepath.Clean(path)
	lastAlert := time.Time{}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitoring stopped", zap.String("path", path))
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				m.mu.Lock()
				wasStuck := m.stuck
				m.lastWrite = time.Now()
				m.stuck = false
				m.mu.Unlock()
				if wasStuck {
					m.logger.Info("file resumed", zap.String("path", path))
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watcher error", zap.Error(err))

		case now := <-ticker.C:
			m.mu.Lock()
			stale := now.Sub(m.lastWrite)
			if stale >= m.AlertInterval && now.Sub(lastAlert) >= m.AlertInterval {
				m.stuck = true
				lastAlert = now
				m.mu.Unlock()
				m.logger.Warn("file appears stuck",
					zap.String("path", path),
					zap.Duration("stale", stale))
				if m.OnAlert != nil {
					m.OnAlert(path, stale)
				}
			} else {
				m.mu.Unlock()
			}
		}
	}
}

// Stuck reports whether the file was stale at the last check.
func (m *Monitor) Stuck() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stuck
}

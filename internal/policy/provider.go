package policy

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// Provider serves immutable policy snapshots and hot-reloads them when the
// backing file changes. A failed reload keeps the previous snapshot.
type Provider struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	current Policy

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewProvider loads the policy at path, or the built-in defaults when path
// is empty or unreadable.
func NewProvider(path string, logger *zap.Logger) *Provider {
	p := &Provider{
		path:    path,
		logger:  logger,
		current: Default(),
		stopCh:  make(chan struct{}),
	}

	if path == "" {
		logger.Info("conflict policy file not configured, using defaults")
		return p
	}

	loaded, err := Load(path)
	if err != nil {
		logger.Warn("failed to load conflict policy, using defaults",
			zap.String("path", path), zap.Error(err))
		return p
	}

	p.current = loaded
	logger.Info("conflict policy loaded",
		zap.String("path", path),
		zap.String("default_rule", loaded.DefaultRule),
		zap.Float64("warn_conflict", loaded.WarnConflict))
	return p
}

// Current returns the active snapshot.
func (p *Provider) Current() Policy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Watch starts hot-reloading the policy file in a background goroutine.
// Editor write bursts are debounced before reloading. No-op when no file
// is configured.
func (p *Provider) Watch() error {
	if p.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files on save, which drops
	// watches on the file itself.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	p.watcher = watcher

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		var timer *time.Timer
		var timerCh <-chan time.Time

		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(p.path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
					timerCh = timer.C
				} else {
					timer.Reset(reloadDebounce)
				}

			case <-timerCh:
				p.reload()
				timer = nil
				timerCh = nil

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Error("policy watcher error", zap.Error(err))

			case <-p.stopCh:
				return
			}
		}
	}()

	p.logger.Info("conflict policy watcher started", zap.String("path", p.path))
	return nil
}

// Stop halts the watcher goroutine.
func (p *Provider) Stop() {
	close(p.stopCh)
	if p.watcher != nil {
		_ = p.watcher.Close()
	}
	p.wg.Wait()
}

func (p *Provider) reload() {
	loaded, err := Load(p.path)
	if err != nil {
		p.logger.Error("conflict policy reload rejected, keeping previous snapshot",
			zap.String("path", p.path), zap.Error(err))
		return
	}

	p.mu.Lock()
	p.current = loaded
	p.mu.Unlock()

	p.logger.Info("conflict policy reloaded",
		zap.String("default_rule", loaded.DefaultRule),
		zap.Float64("warn_conflict", loaded.WarnConflict))
}

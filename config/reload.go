// 配置文件重载。
//
// 轮询配置文件修改时间，变更后重新加载、校验并通知订阅者；
// 校验失败时保留当前配置。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadCallback 在新配置生效后调用
type ReloadCallback func(old, new *Config)

// Reloader watches one config file and swaps in validated reloads.
type Reloader struct {
	mu sync.RWMutex

	path     string
	loader   *Loader
	interval time.Duration
	logger   *zap.Logger

	current   *Config
	lastMod   time.Time
	callbacks []ReloadCallback

	running  bool
	stopChan chan struct{}
}

// ReloaderOption configures a Reloader
type ReloaderOption func(*Reloader)

// WithPollInterval sets how often the file is checked
func WithPollInterval(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReloaderLogger sets the logger
func WithReloaderLogger(logger *zap.Logger) ReloaderOption {
	return func(r *Reloader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReloader creates a reloader for the file loader reads. current is the
// configuration already in effect.
func NewReloader(loader *Loader, current *Config, opts ...ReloaderOption) (*Reloader, error) {
	if loader == nil || loader.configPath == "" {
		return nil, fmt.Errorf("reloader requires a loader with a config path")
	}
	r := &Reloader{
		path:     loader.configPath,
		loader:   loader,
		interval: time.Second,
		logger:   zap.NewNop(),
		current:  current,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "config_reloader"))

	if info, err := os.Stat(r.path); err == nil {
		r.lastMod = info.ModTime()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat path %s: %w", r.path, err)
	}
	return r, nil
}

// OnReload registers a callback for successful reloads
func (r *Reloader) OnReload(cb ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Current returns the configuration in effect
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Start begins polling until ctx ends or Stop is called
func (r *Reloader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reloader already running")
	}
	r.running = true
	r.mu.Unlock()

	go r.pollLoop(ctx)
	r.logger.Info("config reloader started",
		zap.String("path", r.path),
		zap.Duration("interval", r.interval))
	return nil
}

// Stop stops polling
func (r *Reloader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	close(r.stopChan)
	r.running = false
}

func (r *Reloader) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if r.changed() {
				if err := r.Reload(); err != nil {
					r.logger.Warn("config reload rejected", zap.Error(err))
				}
			}
		}
	}
}

// changed reports whether the file's modification time moved forward.
func (r *Reloader) changed() bool {
	info, err := os.Stat(r.path)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !info.ModTime().After(r.lastMod) {
		return false
	}
	r.lastMod = info.ModTime()
	return true
}

// Reload loads and validates the file now. On failure the current
// configuration stays in effect.
func (r *Reloader) Reload() error {
	next, err := r.loader.Load()
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	old := r.current
	r.current = next
	callbacks := make([]ReloadCallback, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	r.logger.Info("config reloaded", zap.String("path", r.path))
	for _, cb := range callbacks {
		cb(old, next)
	}
	return nil
}

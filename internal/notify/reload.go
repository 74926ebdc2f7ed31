package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Reloader watches the notifier config file and hot-reloads a Fanout.
type Reloader struct {
	watcher *fsnotify.Watcher
	fanout  *Fanout
	path    string
	logger  *zap.Logger
}

// NewReloader creates a file watcher for path. The file must exist.
func NewReloader(fanout *Fanout, path string, logger *zap.Logger) (*Reloader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("notify: watch %q: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("notify: create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("notify: watch %q: %w", path, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{watcher: watcher, fanout: fanout, path: path, logger: logger}, nil
}

// Run reloads on write or create events, debounced. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("notifier config watcher error", zap.Error(err))
		}
	}
}

func (r *Reloader) reload() {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		r.logger.Error("notifier config reload failed", zap.String("path", r.path), zap.Error(err))
		return
	}
	r.fanout.Reload(cfg)
	r.logger.Info("notifier config reloaded",
		zap.String("path", r.path),
		zap.Int("webhooks", len(cfg.Webhooks)),
		zap.Bool("kafka", cfg.Kafka.Enabled()))
}

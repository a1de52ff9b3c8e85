// Package background wires the daemon: durable store, session cache,
// resolver, protocol handler and the config-override watcher.
package background

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/you/extraneous/internal/config"
)

// ConfigHolder is the process-wide view of the extension config. The
// protocol handler reads it per request; the watcher swaps it on reload.
type ConfigHolder struct {
	mu  sync.RWMutex
	cfg config.ExtensionConfig
}

func NewConfigHolder(cfg config.ExtensionConfig) *ConfigHolder {
	return &ConfigHolder{cfg: cfg}
}

func (h *ConfigHolder) Current() config.ExtensionConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func (h *ConfigHolder) Set(cfg config.ExtensionConfig) {
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
}

// LoadOverrideFile merges a JSON override file over the defaults and stores
// the result. Missing file is not an error; the persisted config stands.
func LoadOverrideFile(ctx context.Context, s config.Store, holder *ConfigHolder, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	merged, err := config.Merge(raw)
	if err != nil {
		return err
	}
	if err := config.Save(ctx, s, merged); err != nil {
		return err
	}
	holder.Set(merged)
	return nil
}

// WatchConfigFile reloads the override file on change, debounced. The
// watcher re-adds the path after editors that replace the file on save.
func WatchConfigFile(ctx context.Context, s config.Store, holder *ConfigHolder, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := w.Add(ev.Name); err != nil {
						slog.Error("config watch re-add", "path", ev.Name, "err", err)
					}
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(250 * time.Millisecond)
				}
			case <-debounce.C:
				if err := LoadOverrideFile(ctx, s, holder, path); err != nil {
					slog.Error("config reload failed", "path", path, "err", err)
				} else {
					slog.Info("config reloaded", "path", path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("config watch error", "err", err)
			}
		}
	}()
	return nil
}
